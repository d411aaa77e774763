package api

import (
	"net/http"
	"strconv"

	"github.com/MrWong99/soundwatch/internal/push"
	"github.com/MrWong99/soundwatch/internal/store"
)

const noticeNotFound = "공지사항을 찾을 수 없습니다"

type noticeFirstResponse struct {
	Title string `json:"title"`
}

type noticeInsertResponse struct {
	NoticeNo int64 `json:"notice_no"`
}

// noticeNo parses the {no} path value. It answers 422 itself and returns
// false for a non-numeric value.
func noticeNo(w http.ResponseWriter, r *http.Request) (int64, bool) {
	no, err := strconv.ParseInt(r.PathValue("no"), 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "notice number must be an integer")
		return 0, false
	}
	return no, true
}

func (s *Server) noticeList(w http.ResponseWriter, r *http.Request) {
	s.writeNotices(w, r)
}

func (s *Server) writeNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := s.cfg.Store.ListNotices(r.Context())
	if err != nil {
		writeStoreError(w, r, err, noticeNotFound)
		return
	}
	if notices == nil {
		notices = []store.Notice{}
	}
	writeJSON(w, http.StatusOK, notices)
}

func (s *Server) noticeFirst(w http.ResponseWriter, r *http.Request) {
	n, err := s.cfg.Store.LatestNotice(r.Context())
	if err != nil {
		writeStoreError(w, r, err, noticeNotFound)
		return
	}
	writeJSON(w, http.StatusOK, noticeFirstResponse{Title: n.Title})
}

func (s *Server) noticeContent(w http.ResponseWriter, r *http.Request) {
	no, ok := noticeNo(w, r)
	if !ok {
		return
	}
	n, err := s.cfg.Store.GetNotice(r.Context(), no)
	if err != nil {
		writeStoreError(w, r, err, noticeNotFound)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// noticeInsert stores a notice and tells permitted devices about it. The
// notice stays stored when the broadcast fails.
func (s *Server) noticeInsert(w http.ResponseWriter, r *http.Request) {
	var in store.NoticeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Title == "" {
		writeError(w, http.StatusUnprocessableEntity, "title is required")
		return
	}
	no, err := s.cfg.Store.InsertNotice(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, err, noticeNotFound)
		return
	}
	_ = s.broadcast(r.Context(), "notice", push.Permitted, push.NoticeUpdated)
	writeJSON(w, http.StatusOK, noticeInsertResponse{NoticeNo: no})
}

func (s *Server) noticeUpdate(w http.ResponseWriter, r *http.Request) {
	no, ok := noticeNo(w, r)
	if !ok {
		return
	}
	var in store.NoticeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := s.cfg.Store.UpdateNotice(r.Context(), no, in); err != nil {
		writeStoreError(w, r, err, noticeNotFound)
		return
	}
	s.writeNotices(w, r)
}

func (s *Server) noticeDelete(w http.ResponseWriter, r *http.Request) {
	no, ok := noticeNo(w, r)
	if !ok {
		return
	}
	if err := s.cfg.Store.DeleteNotice(r.Context(), no); err != nil {
		writeStoreError(w, r, err, noticeNotFound)
		return
	}
	s.writeNotices(w, r)
}
