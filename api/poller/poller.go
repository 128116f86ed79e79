// Package poller follows a deployment on the backend until it reaches a
// terminal status.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kubegarden/api/backend"
	"kubegarden/api/logger"
	"kubegarden/api/status"
)

// ErrGaveUp is returned when MaxAttempts polls passed without a terminal status.
var ErrGaveUp = errors.New("poller: gave up waiting for terminal status")

type Getter interface {
	GetDeployment(ctx context.Context, id string) (*backend.DeploymentRecord, error)
}

// Update is emitted once per distinct status observed, plus once for the
// synthetic success that follows a settling status.
type Update struct {
	Record  backend.DeploymentRecord
	Phase   status.Phase
	Message string
}

type Result struct {
	Record backend.DeploymentRecord
	Phase  status.Phase
}

type Poller struct {
	Backend Getter

	Interval        time.Duration // between successful polls; default 2s
	CompletionDelay time.Duration // wait after a settling status; default 3s
	MaxBackoff      time.Duration // cap for error backoff; default 30s
	MaxAttempts     int           // 0 polls until ctx is done

	OnUpdate func(Update)
}

func (p *Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return 2 * time.Second
	}
	return p.Interval
}

func (p *Poller) completionDelay() time.Duration {
	if p.CompletionDelay < 0 {
		return 0
	}
	if p.CompletionDelay == 0 {
		return 3 * time.Second
	}
	return p.CompletionDelay
}

func (p *Poller) maxBackoff() time.Duration {
	if p.MaxBackoff <= 0 {
		return 30 * time.Second
	}
	return p.MaxBackoff
}

// Wait polls deployment id until it succeeds or fails. Not-found and other
// client errors are retried with backoff; a 5xx answer ends the wait with
// that error. A settling status keeps being polled for CompletionDelay and
// becomes a success only if nothing else shows up in that window.
func (p *Poller) Wait(ctx context.Context, id string) (*Result, error) {
	log := logger.GetLogger().With(zap.String("deployment", id))

	var (
		last     string
		seen     bool
		failures int
		lastErr  error
		settleAt time.Time
		settled  backend.DeploymentRecord
	)
	for attempt := 1; ; attempt++ {
		rec, err := p.Backend.GetDeployment(ctx, id)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && backend.IsServerError(err):
			return nil, fmt.Errorf("poll deployment %s: %w", id, err)
		case err != nil:
			failures++
			lastErr = err
			log.Debug("poll failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		default:
			failures = 0
			phase := status.Classify(rec.Status)
			if !seen || rec.Status != last {
				seen = true
				last = rec.Status
				p.emit(Update{Record: *rec, Phase: phase, Message: status.Describe(rec.Status)})
			}
			if status.Terminal(phase) {
				return &Result{Record: *rec, Phase: phase}, nil
			}
			if !status.Settling(rec.Status) {
				settleAt = time.Time{}
			} else if settleAt.IsZero() {
				settleAt = time.Now().Add(p.completionDelay())
				settled = *rec
			}
		}

		wait := p.backoff(failures)
		if !settleAt.IsZero() {
			remaining := time.Until(settleAt)
			if remaining <= 0 {
				p.emit(Update{Record: settled, Phase: status.Succeeded, Message: "Rollout settled. Canary is live."})
				return &Result{Record: settled, Phase: status.Succeeded}, nil
			}
			wait = min(wait, remaining)
		} else if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			if lastErr != nil && failures > 0 {
				return nil, fmt.Errorf("%w after %d attempts: %w", ErrGaveUp, attempt, lastErr)
			}
			return nil, fmt.Errorf("%w after %d attempts (last status %q)", ErrGaveUp, attempt, last)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// backoff grows the interval by 1.5x per consecutive failure.
func (p *Poller) backoff(failures int) time.Duration {
	d := p.interval()
	for i := 0; i < failures-1; i++ {
		d = time.Duration(float64(d) * 1.5)
		if d >= p.maxBackoff() {
			return p.maxBackoff()
		}
	}
	return d
}

func (p *Poller) emit(u Update) {
	if p.OnUpdate != nil {
		p.OnUpdate(u)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
