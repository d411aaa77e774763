package store

import "time"

// Notice is one notice board post.
type Notice struct {
	No      int64     `json:"no"`
	Title   string    `json:"title"`
	Content *string   `json:"content"`
	Date    time.Time `json:"date"`
	File    *string   `json:"file"`
}

// NoticeInput carries the editable fields of a notice.
type NoticeInput struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	File    *string `json:"file,omitempty"`
}

// NoiseEvent is one classified sound reported by a device.
type NoiseEvent struct {
	// Timemap is the device supplied key; it is unique per event.
	Timemap   string    `json:"timemap"`
	Label     string    `json:"label"`
	Decibel   int       `json:"decibel"`
	CreatedAt time.Time `json:"created_at"`
}

// NoiseFilter narrows [NoiseLog.ListNoise].
type NoiseFilter struct {
	// Since keeps events inserted at or after this instant.
	Since time.Time
}

// User is a user profile.
type User struct {
	UUID       string  `json:"uuid"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	ExpireDate *string `json:"expire_date"`
	Avatar     *string `json:"user_avatar"`
}

// Notification permissions.
const (
	PermissionYes = "yes"
	PermissionNo  = "no"
)

// PushToken is an FCM registration token of one device.
type PushToken struct {
	UUID       string `json:"uuid"`
	Token      string `json:"token"`
	Permission string `json:"permission"`
}

// UpsertOutcome says what [Tokens.UpsertToken] did.
type UpsertOutcome int

// Upsert outcomes.
const (
	TokenCreated UpsertOutcome = iota
	TokenMoved
	TokenUnchanged
)

// UpsertResult is the row after [Tokens.UpsertToken] and what happened to it.
type UpsertResult struct {
	Outcome UpsertOutcome
	Token   PushToken
}

// Emotion log sources.
const (
	SourceStream = "stream"
	SourceBatch  = "batch"
)

// EmotionEntry is one emitted emotion result.
type EmotionEntry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Source    string    `json:"source"`
	Text      string    `json:"text"`
	Emotion   string    `json:"emotion"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// EmotionMatch is an [EmotionEntry] with its cosine distance to a query.
type EmotionMatch struct {
	EmotionEntry
	Distance float64 `json:"distance"`
}
