package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultFCMEndpoint = "https://fcm.googleapis.com/v1/projects"

	// fcmScope is the OAuth scope the service account token is minted for.
	fcmScope = "https://www.googleapis.com/auth/cloud-platform"
)

// FCMOption configures an [FCM] sender.
type FCMOption func(*FCM)

// WithFCMEndpoint overrides the API base URL (up to and including
// "/v1/projects").
func WithFCMEndpoint(u string) FCMOption {
	return func(f *FCM) { f.endpoint = strings.TrimRight(u, "/") }
}

// WithFCMTimeout sets the per-request timeout. Default: 10 s.
func WithFCMTimeout(d time.Duration) FCMOption {
	return func(f *FCM) { f.timeout = d }
}

// FCM sends notifications through the Firebase Cloud Messaging HTTP v1 API.
type FCM struct {
	endpoint string
	project  string
	timeout  time.Duration
	client   *http.Client
}

var _ Sender = (*FCM)(nil)

// ServiceAccountTokens reads a Google service account key file and returns a
// cached token source for the messaging scope.
func ServiceAccountTokens(ctx context.Context, path string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("push: read service account: %w", err)
	}
	cfg, err := google.JWTConfigFromJSON(data, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("push: parse service account: %w", err)
	}
	return cfg.TokenSource(ctx), nil
}

// NewFCM returns a sender for projectID authenticated by tokens.
func NewFCM(projectID string, tokens oauth2.TokenSource, opts ...FCMOption) (*FCM, error) {
	if projectID == "" {
		return nil, fmt.Errorf("push: fcm project id must not be empty")
	}
	if tokens == nil {
		return nil, fmt.Errorf("push: fcm token source must not be nil")
	}
	f := &FCM{
		endpoint: defaultFCMEndpoint,
		project:  projectID,
		timeout:  10 * time.Second,
	}
	for _, o := range opts {
		o(f)
	}
	f.client = &http.Client{
		Timeout: f.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, tokens),
			Base:   http.DefaultTransport,
		},
	}
	return f, nil
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string       `json:"token"`
	Notification Notification `json:"notification"`
}

// Send implements [Sender].
func (f *FCM) Send(ctx context.Context, token string, n Notification) error {
	body, err := json.Marshal(fcmRequest{Message: fcmMessage{Token: token, Notification: n}})
	if err != nil {
		return fmt.Errorf("push: marshal message: %w", err)
	}
	url := fmt.Sprintf("%s/%s/messages:send", f.endpoint, f.project)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push: fcm returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
