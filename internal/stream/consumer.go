package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/MrWong99/soundwatch/internal/emotion"
	"github.com/MrWong99/soundwatch/internal/observe"
	"github.com/MrWong99/soundwatch/internal/store"
	"github.com/MrWong99/soundwatch/pkg/audio"
	"github.com/MrWong99/soundwatch/pkg/provider/recognizer"
	"github.com/MrWong99/soundwatch/pkg/provider/sentiment"
)

// Analyzer runs the acoustic emotion pipeline. *emotion.Pipeline satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, wav []byte, text string) (emotion.Result, error)
}

var _ Analyzer = (*emotion.Pipeline)(nil)

// Consumer turns final recognizer results into emotion messages.
type Consumer struct {
	sessionID string
	src       recognizer.Stream
	ext       *Extractor
	rate      int
	deps      *Config

	jobs sync.WaitGroup
}

// Run reads src until it ends and dispatches one inference job per usable
// final. Results are sent on out, or discarded once emitCtx is done. On a
// normal end of results Run waits for its jobs, closes out and returns nil;
// the reader of out decides when the session is over. A closed stream also
// yields nil; any other read failure is returned. Jobs still running on an early return are awaited by
// [Consumer.Wait].
func (c *Consumer) Run(emitCtx context.Context, out chan<- Message) error {
	log := observe.Logger(emitCtx)
	for {
		resp, err := c.src.Recv()
		switch {
		case errors.Is(err, io.EOF):
			c.jobs.Wait()
			close(out)
			return nil
		case errors.Is(err, recognizer.ErrClosed):
			return nil
		case errors.Is(err, recognizer.ErrMalformed):
			log.Warn("stream: skipping malformed recognizer response", "err", err)
			c.deps.Metrics.RecordUtterance(emitCtx, observe.OutcomeProtocolError)
			continue
		case err != nil:
			return fmt.Errorf("stream: receive: %w", err)
		}

		for _, res := range resp.Results {
			if res.IsFinal {
				c.handleFinal(emitCtx, res, out)
			}
		}
	}
}

// Wait blocks until every dispatched job has returned.
func (c *Consumer) Wait() { c.jobs.Wait() }

// handleFinal cuts the utterance out of the extractor and schedules its
// inference. Every failure drops only this utterance.
func (c *Consumer) handleFinal(ctx context.Context, res recognizer.Result, out chan<- Message) {
	log := observe.Logger(ctx)
	m := c.deps.Metrics

	if len(res.Alternatives) == 0 || res.Alternatives[0].Text == "" {
		m.RecordUtterance(ctx, observe.OutcomeEmptyText)
		return
	}
	alt := res.Alternatives[0]

	w, err := WindowFromWords(alt.Words, c.rate)
	if err != nil {
		log.Warn("stream: dropping utterance", "text", alt.Text, "err", err)
		m.RecordUtterance(ctx, observe.OutcomeProtocolError)
		return
	}

	wav, err := c.ext.Extract(w)
	switch {
	case errors.Is(err, ErrEmptyBuffer):
		log.Debug("stream: dropping utterance, no audio held", "text", alt.Text)
		m.RecordUtterance(ctx, observe.OutcomeEmptyBuffer)
		return
	case errors.Is(err, audio.ErrRange):
		log.Warn("stream: dropping utterance", "text", alt.Text, "start", w.Start, "end", w.End, "err", err)
		m.RecordUtterance(ctx, observe.OutcomeOutOfRange)
		return
	case err != nil:
		log.Error("stream: dropping utterance, wav encoding failed", "text", alt.Text, "err", err)
		m.RecordUtterance(ctx, observe.OutcomeEncodeFail)
		return
	}

	text := alt.Text
	err = c.deps.Pool.Go(ctx, &c.jobs, func(jobCtx context.Context) {
		c.infer(jobCtx, ctx, text, wav, out)
	})
	if err != nil {
		m.RecordUtterance(ctx, observe.OutcomeDiscarded)
	}
}

// infer labels one utterance on jobCtx and emits the result while emitCtx
// is live.
func (c *Consumer) infer(jobCtx, emitCtx context.Context, text string, wav []byte, out chan<- Message) {
	log := observe.Logger(jobCtx)
	m := c.deps.Metrics

	var (
		label     emotion.Label
		embedding []float32
		source    = "pipeline"
		outcome   = observe.OutcomeEmitted
	)

	verdict, err := c.deps.Sentiment.Classify(jobCtx, text)
	if err != nil {
		log.Warn("stream: sentiment failed, running full inference", "err", err)
	}
	if err == nil && sentiment.IsNeutral(verdict, c.deps.NeutralLabels...) {
		label, source, outcome = emotion.Neutrality, "sentiment", observe.OutcomeNeutral
	} else {
		res, err := c.deps.Analyzer.Analyze(jobCtx, wav, text)
		if err != nil {
			log.Warn("stream: dropping utterance", "text", text, "err", err)
			m.RecordUtterance(jobCtx, observe.OutcomeInferenceFail)
			return
		}
		label, embedding = res.Label, res.Embedding
	}

	if emitCtx.Err() != nil {
		m.RecordUtterance(jobCtx, observe.OutcomeDiscarded)
		return
	}
	select {
	case out <- Message{Text: text, Emotion: string(label)}:
	case <-emitCtx.Done():
		m.RecordUtterance(jobCtx, observe.OutcomeDiscarded)
		return
	}
	m.RecordUtterance(jobCtx, outcome)
	m.RecordEmotion(jobCtx, string(label), source)

	if c.deps.Journal == nil {
		return
	}
	_, err = c.deps.Journal.AppendEmotion(jobCtx, store.EmotionEntry{
		SessionID: c.sessionID,
		Source:    store.SourceStream,
		Text:      text,
		Emotion:   string(label),
		Embedding: embedding,
	})
	if err != nil {
		observe.Logger(jobCtx).Warn("stream: failed to journal emotion", "err", err)
	}
}
