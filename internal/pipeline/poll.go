package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/xai"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 180
	stateFailed            = "failed"
	stateProcessing        = "processing"
)

// StatusSource reports the state of a queued video job.
type StatusSource interface {
	VideoStatus(ctx context.Context, requestID string) (*xai.VideoStatus, error)
}

// Poller checks a video job at a fixed interval until it yields a URL, fails,
// or runs out of attempts.
type Poller struct {
	source      StatusSource
	interval    time.Duration
	maxAttempts int
}

func NewPoller(source StatusSource, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	return &Poller{source: source, interval: interval, maxAttempts: maxAttempts}
}

// Poll returns the first status carrying a URL. onProgress receives the state
// of every non-terminal response. Cancelling ctx stops the loop before the
// next request and interrupts the sleep between requests.
func (p *Poller) Poll(ctx context.Context, requestID string, onProgress func(state string)) (*xai.VideoStatus, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: polling %s: %w", domain.ErrCancelled, requestID, err)
		}
		st, err := p.source.VideoStatus(ctx, requestID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: polling %s: %w", domain.ErrCancelled, requestID, ctxErr)
			}
			return nil, fmt.Errorf("%w: status check: %w", domain.ErrPollFailure, err)
		}
		if st.State == stateFailed {
			detail := st.Error
			if detail == "" {
				detail = "unknown error"
			}
			return nil, fmt.Errorf("%w: %s", domain.ErrPollFailure, detail)
		}
		if st.URL != "" {
			return st, nil
		}
		if onProgress != nil {
			state := st.State
			if state == "" {
				state = stateProcessing
			}
			onProgress(state)
		}
		if attempt == p.maxAttempts {
			break
		}
		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: polling %s: %w", domain.ErrCancelled, requestID, ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%w after %d attempts", domain.ErrPollTimeout, p.maxAttempts)
}

// Budget is the longest a full poll run can take by its own accounting.
func (p *Poller) Budget() time.Duration {
	return p.interval * time.Duration(p.maxAttempts)
}
