package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-broadcast/internal/gateway"
	"whatsapp-broadcast/internal/metrics"
)

// BulkGateway is the slice of the gateway client the orchestrator needs.
type BulkGateway interface {
	SendBulk(ctx context.Context, creds gateway.Credentials, templateID string, recipients []string, segments []gateway.Segment) (*gateway.BulkSendResponse, error)
	BulkProgress(ctx context.Context, creds gateway.Credentials, templateID string) (gateway.Progress, error)
}

// State of one logical send operation.
type State int32

const (
	StateIdle State = iota
	StateSubmitting
	StateInProgress
	StateCompleted
	StateFailedToStart
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSubmitting:
		return "SUBMITTING"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateCompleted:
		return "COMPLETED"
	case StateFailedToStart:
		return "FAILED_TO_START"
	default:
		return "UNKNOWN"
	}
}

var ErrNoRecipients = errors.New("dispatch requires at least one recipient")

const (
	defaultPollInterval    = 500 * time.Millisecond
	defaultMaxPollAttempts = 240 // two minutes at the default interval
)

// Options tune one orchestrator. OnProgress, when set, receives each
// progress snapshot observed while the batch is in flight.
type Options struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	OnProgress      func(gateway.Progress)
	Logger          zerolog.Logger
}

// Orchestrator drives a single bulk-send operation to completion: one
// submission, advisory progress polling while the gateway works, and the
// authoritative result partition from the bulk response. One orchestrator
// serves one logical send session.
type Orchestrator struct {
	gw    BulkGateway
	opts  Options
	state atomic.Int32
}

func NewOrchestrator(gw BulkGateway, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = defaultMaxPollAttempts
	}
	return &Orchestrator{gw: gw, opts: opts}
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Dispatch submits the compiled segments to every recipient and blocks until
// the gateway reports the whole batch processed. A rejected submission is
// fatal and produces no partial results; individual recipient failures are
// expected and land in the returned set as FAILURE outcomes.
func (o *Orchestrator) Dispatch(ctx context.Context, creds gateway.Credentials, templateID string, recipients []string, segments []gateway.Segment) (ResultSet, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	o.state.Store(int32(StateSubmitting))
	o.opts.Logger.Info().
		Str("template_id", templateID).
		Int("recipients", len(recipients)).
		Msg("submitting bulk dispatch")

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		o.pollProgress(pollCtx, creds, templateID)
	}()

	resp, err := o.gw.SendBulk(ctx, creds, templateID, recipients, segments)
	stopPolling()
	<-pollDone

	if err != nil {
		o.state.Store(int32(StateFailedToStart))
		metrics.DispatchesTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("bulk submission rejected: %w", err)
	}

	o.state.Store(int32(StateCompleted))
	metrics.DispatchesTotal.WithLabelValues("completed").Inc()
	metrics.RecipientOutcomes.WithLabelValues("success").Add(float64(len(resp.Results.Success)))
	metrics.RecipientOutcomes.WithLabelValues("failure").Add(float64(len(resp.Results.Failed)))

	o.opts.Logger.Info().
		Str("template_id", templateID).
		Int("success", resp.Summary.SuccessCount).
		Int("failed", resp.Summary.FailedCount).
		Msg("bulk dispatch completed")

	return FromBulkResponse(resp), nil
}

// pollProgress ticks until the batch reports complete, the attempt cap is
// reached, or the context is cancelled. Polling is advisory: transient
// errors are logged and re-polled, never treated as delivery failure.
func (o *Orchestrator) pollProgress(ctx context.Context, creds gateway.Credentials, templateID string) {
	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	for attempts := 0; attempts < o.opts.MaxPollAttempts; attempts++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		progress, err := o.gw.BulkProgress(ctx, creds, templateID)
		metrics.ProgressPolls.Inc()
		if err != nil {
			o.opts.Logger.Debug().Err(err).Msg("progress poll failed, retrying")
			continue
		}

		// First non-empty count means the gateway accepted the batch.
		if progress.Total > 0 {
			o.state.CompareAndSwap(int32(StateSubmitting), int32(StateInProgress))
		}

		if o.opts.OnProgress != nil {
			o.opts.OnProgress(progress)
		}

		if batchComplete(progress) {
			return
		}
	}

	o.opts.Logger.Warn().
		Str("template_id", templateID).
		Int("max_attempts", o.opts.MaxPollAttempts).
		Msg("progress polling gave up before gateway reported completion")
}

// batchComplete is the completion predicate: all recipients accounted for.
// A zero total means the batch has not started, not that it is done.
func batchComplete(p gateway.Progress) bool {
	return p.Total > 0 && p.Completed >= p.Total
}
