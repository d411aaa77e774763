// Package vito provides a streaming recognizer backed by the VITO (Return Zero)
// WebSocket transcription API. It implements the recognizer.Provider
// interface.
//
// Audio frames are sent as binary messages; the end of input is signalled by
// a text "EOS" message. The server answers with one JSON text message per
// result and closes the connection normally after the last final.
package vito

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/MrWong99/soundwatch/pkg/provider/recognizer"
	"github.com/coder/websocket"
	"golang.org/x/oauth2"
)

const (
	defaultEndpoint = "wss://openapi.vito.ai/v1/transcribe:streaming"
	defaultAuthURL  = "https://openapi.vito.ai/v1/authenticate"

	// earlyExpiry refreshes the bearer token this long before it lapses.
	earlyExpiry = time.Minute

	eosMessage = "EOS"
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithEndpoint overrides the streaming WebSocket endpoint.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// WithAuthURL overrides the token endpoint.
func WithAuthURL(authURL string) Option {
	return func(p *Provider) { p.authURL = authURL }
}

// WithHTTPClient sets the client used for authentication and the WebSocket
// handshake.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithTokenSource replaces the client-credentials token source. Useful when
// several providers share one cached token.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(p *Provider) { p.tokens = ts }
}

// Provider implements recognizer.Provider backed by the VITO streaming API.
type Provider struct {
	endpoint   string
	authURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
}

// New creates a Provider that authenticates with clientID and clientSecret.
// The bearer token is cached process-wide per Provider and refreshed shortly
// before it expires.
func New(clientID, clientSecret string, opts ...Option) (*Provider, error) {
	p := &Provider{
		endpoint:   defaultEndpoint,
		authURL:    defaultAuthURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	if p.tokens == nil {
		if clientID == "" || clientSecret == "" {
			return nil, errors.New("vito: client id and secret must not be empty")
		}
		p.tokens = oauth2.ReuseTokenSourceWithExpiry(nil, &authSource{
			client: p.httpClient,
			url:    p.authURL,
			id:     clientID,
			secret: clientSecret,
		}, earlyExpiry)
	}
	return p, nil
}

var _ recognizer.Provider = (*Provider)(nil)

// Decode dials the streaming endpoint with the config carried by the first
// frame and starts forwarding the remaining frames.
func (p *Provider) Decode(ctx context.Context, frames iter.Seq[recognizer.Frame]) (recognizer.Stream, error) {
	next, stop := iter.Pull(frames)
	first, ok := next()
	if !ok || first.Config == nil {
		stop()
		return nil, recognizer.ErrNoConfig
	}

	wsURL, err := p.buildURL(*first.Config)
	if err != nil {
		stop()
		return nil, fmt.Errorf("vito: build URL: %w", err)
	}

	tok, err := p.tokens.Token()
	if err != nil {
		stop()
		return nil, fmt.Errorf("vito: authenticate: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", tok.Type()+" "+tok.AccessToken)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: p.httpClient,
		HTTPHeader: headers,
	})
	if err != nil {
		stop()
		return nil, fmt.Errorf("vito: dial: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	sctx, cancel := context.WithCancel(ctx)
	s := &stream{
		conn:   conn,
		ctx:    sctx,
		cancel: cancel,
	}
	go s.writeLoop(next, stop)
	return s, nil
}

// buildURL constructs the streaming endpoint URL for cfg.
func (p *Provider) buildURL(cfg recognizer.StreamingConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	enc := cfg.Encoding
	if enc == "" {
		enc = recognizer.LINEAR16
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	q.Set("encoding", string(enc))
	q.Set("use_itn", strconv.FormatBool(cfg.UseITN))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ── Authentication ────────────────────────────────────────────────────────────

// authResponse is the body returned by the token endpoint. ExpireAt is a unix
// timestamp in seconds.
type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpireAt    int64  `json:"expire_at"`
}

// authSource fetches fresh tokens with the client-credentials form. It is
// always wrapped in a reusing token source.
type authSource struct {
	client *http.Client
	url    string
	id     string
	secret string
}

func (a *authSource) Token() (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("client_id", a.id)
	form.Set("client_secret", a.secret)

	resp, err := a.client.PostForm(a.url, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if ar.AccessToken == "" {
		return nil, errors.New("token endpoint returned an empty token")
	}
	return &oauth2.Token{
		AccessToken: ar.AccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Unix(ar.ExpireAt, 0),
	}, nil
}

// ── Stream ────────────────────────────────────────────────────────────────────

// wireResult is one JSON result message.
type wireResult struct {
	Seq          int   `json:"seq"`
	StartAt      int64 `json:"start_at"`
	Duration     int64 `json:"duration"`
	Final        bool  `json:"final"`
	Alternatives []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		Words      []struct {
			Text     string `json:"text"`
			StartAt  int64  `json:"start_at"`
			Duration int64  `json:"duration"`
		} `json:"words"`
	} `json:"alternatives"`
}

// stream is a live recognition call. It implements recognizer.Stream.
type stream struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	once sync.Once

	mu       sync.Mutex
	writeErr error
	closed   bool
}

var _ recognizer.Stream = (*stream)(nil)

// writeLoop forwards audio frames until the sequence ends, then sends EOS.
// It is the only caller of next and stop after Decode returns, and exits
// once the frame sequence ends even if the stream was closed earlier.
func (s *stream) writeLoop(next func() (recognizer.Frame, bool), stop func()) {
	defer stop()

	for {
		f, ok := next()
		if !ok {
			break
		}
		if len(f.Audio) == 0 || s.ctx.Err() != nil {
			continue
		}
		if err := s.conn.Write(s.ctx, websocket.MessageBinary, f.Audio); err != nil {
			s.setWriteErr(err)
			return
		}
	}
	if s.ctx.Err() != nil {
		return
	}
	if err := s.conn.Write(s.ctx, websocket.MessageText, []byte(eosMessage)); err != nil {
		s.setWriteErr(err)
	}
}

func (s *stream) setWriteErr(err error) {
	s.mu.Lock()
	if s.writeErr == nil {
		s.writeErr = err
	}
	s.mu.Unlock()
}

// Recv reads the next result message.
func (s *stream) Recv() (recognizer.Response, error) {
	typ, data, err := s.conn.Read(s.ctx)
	if err != nil {
		return recognizer.Response{}, s.readErr(err)
	}
	if typ != websocket.MessageText {
		return recognizer.Response{}, fmt.Errorf("vito: unexpected binary message: %w", recognizer.ErrMalformed)
	}
	res, err := parseResult(data)
	if err != nil {
		return recognizer.Response{}, err
	}
	return recognizer.Response{Results: []recognizer.Result{res}}, nil
}

// readErr maps a read failure to io.EOF, ErrClosed or a wrapped transport
// error.
func (s *stream) readErr(err error) error {
	s.mu.Lock()
	closed, werr := s.closed, s.writeErr
	s.mu.Unlock()
	if closed {
		return recognizer.ErrClosed
	}
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return io.EOF
	}
	if werr != nil {
		return fmt.Errorf("vito: send audio: %w", werr)
	}
	return fmt.Errorf("vito: read: %w", err)
}

// Close aborts the call. Pending audio is not flushed.
func (s *stream) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "stream closed")
	})
	return nil
}

// parseResult decodes one result message.
func parseResult(data []byte) (recognizer.Result, error) {
	var wr wireResult
	if err := json.Unmarshal(data, &wr); err != nil {
		return recognizer.Result{}, fmt.Errorf("vito: %w: %v", recognizer.ErrMalformed, err)
	}
	res := recognizer.Result{
		IsFinal:      wr.Final,
		Alternatives: make([]recognizer.Alternative, 0, len(wr.Alternatives)),
	}
	for _, a := range wr.Alternatives {
		alt := recognizer.Alternative{
			Text:       a.Text,
			Confidence: a.Confidence,
			Words:      make([]recognizer.Word, 0, len(a.Words)),
		}
		for _, w := range a.Words {
			alt.Words = append(alt.Words, recognizer.Word{
				Text:     w.Text,
				StartAt:  w.StartAt,
				Duration: w.Duration,
			})
		}
		res.Alternatives = append(res.Alternatives, alt)
	}
	return res, nil
}
