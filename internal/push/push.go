// Package push delivers notifications to registered devices.
//
// A [Sender] delivers one message to one registration token; [FCM] is the
// Firebase Cloud Messaging HTTP v1 implementation. A [Dispatcher] fans a
// notification out to every stored token and collects per-token failures.
package push

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/soundwatch/internal/observe"
)

// ErrNoTokens is returned by [Dispatcher.Broadcast] when no device is
// registered.
var ErrNoTokens = errors.New("push: no tokens registered")

// Notification is the visible part of a push message.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NoticeUpdated is sent to permitted devices when a notice is posted.
var NoticeUpdated = Notification{
	Title: "공지사항 업데이트",
	Body:  "새로운 공지사항이 업로드 되었습니다!",
}

// dangerTitle heads every dangerous-noise alert.
const dangerTitle = "위험 소음 감지"

// dangerousSounds maps the noise labels that trigger an alert to the
// phrase shown to the user.
var dangerousSounds = map[string]string{
	"Bark":     "개 짖는 소리",
	"Car horn": "경적 소리",
	"Siren":    "사이렌 소리",
}

// AlertFor returns the alert for a realtime noise label. ok is false for
// labels that do not warrant a notification.
func AlertFor(label string) (n Notification, ok bool) {
	phrase, ok := dangerousSounds[label]
	if !ok {
		return Notification{}, false
	}
	return Notification{Title: dangerTitle, Body: phrase + "가 감지되었습니다!"}, true
}

// Sender delivers one notification to one registration token.
// Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, token string, n Notification) error
}

// TokenLister lists registration tokens. It is satisfied by the store.
type TokenLister interface {
	ListTokens(ctx context.Context, permittedOnly bool) ([]string, error)
}

// DeliveryError reports the tokens a broadcast could not reach.
type DeliveryError struct {
	Failed []string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("push: failed to send notification to tokens: [%s]", strings.Join(e.Failed, ", "))
}

// Audience selects which tokens a broadcast targets.
type Audience int

const (
	// Permitted targets tokens whose permission is "yes".
	Permitted Audience = iota
	// Everyone targets every registered token.
	Everyone
)

// DispatcherOption configures a [Dispatcher].
type DispatcherOption func(*Dispatcher)

// WithConcurrency bounds the number of in-flight deliveries. Default: 8.
func WithConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher broadcasts notifications to stored tokens.
type Dispatcher struct {
	sender      Sender
	tokens      TokenLister
	concurrency int
	metrics     *observe.Metrics
}

// NewDispatcher returns a Dispatcher delivering through sender to the tokens
// listed by tokens.
func NewDispatcher(sender Sender, tokens TokenLister, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{sender: sender, tokens: tokens, concurrency: 8}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// Broadcast sends n to every token of the audience. topic labels the
// delivery metrics. It returns [ErrNoTokens] when the audience is empty and
// a [*DeliveryError] naming every token that failed; deliveries to the other
// tokens still happen.
func (d *Dispatcher) Broadcast(ctx context.Context, topic string, audience Audience, n Notification) error {
	ctx, span := observe.StartSpan(ctx, "push.broadcast")
	defer span.End()

	tokens, err := d.tokens.ListTokens(ctx, audience == Permitted)
	if err != nil {
		return fmt.Errorf("push: list tokens: %w", err)
	}
	if len(tokens) == 0 {
		return ErrNoTokens
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.concurrency)
	for _, tok := range tokens {
		eg.Go(func() error {
			if err := d.sender.Send(egCtx, tok, n); err != nil {
				observe.Logger(ctx).Warn("push delivery failed", "topic", topic, "err", err)
				mu.Lock()
				failed = append(failed, tok)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	d.metrics.RecordPush(ctx, topic, "sent", len(tokens)-len(failed))
	if len(failed) > 0 {
		d.metrics.RecordPush(ctx, topic, "failed", len(failed))
		// Report failures in listing order.
		order := make(map[string]int, len(tokens))
		for i, t := range tokens {
			order[t] = i
		}
		slices.SortFunc(failed, func(a, b string) int { return cmp.Compare(order[a], order[b]) })
		return &DeliveryError{Failed: failed}
	}
	return nil
}
