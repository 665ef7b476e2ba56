package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"whatsapp-broadcast/internal/gateway"
)

// Dispatcher is what the retry manager drives; satisfied by *Orchestrator.
type Dispatcher interface {
	Dispatch(ctx context.Context, creds gateway.Credentials, templateID string, recipients []string, segments []gateway.Segment) (ResultSet, error)
}

// RetryManager resubmits only previously failed recipients and folds the new
// outcomes back into the prior result table.
type RetryManager struct {
	dispatcher Dispatcher
	log        zerolog.Logger
}

func NewRetryManager(dispatcher Dispatcher, log zerolog.Logger) *RetryManager {
	return &RetryManager{
		dispatcher: dispatcher,
		log:        log.With().Str("component", "retry").Logger(),
	}
}

// Retry re-dispatches the compiled segments to the FAILURE subset of prior.
// Recipients that already succeeded are never resubmitted. The returned set
// is prior with each retried recipient's entry replaced by its newest
// outcome; retried lists who was resubmitted. An empty failed subset makes
// no network call and returns prior unchanged with retried == nil — that is
// "nothing to retry", not an error.
func (m *RetryManager) Retry(ctx context.Context, creds gateway.Credentials, templateID string, segments []gateway.Segment, prior ResultSet) (results ResultSet, retried []string, err error) {
	failed := prior.Failed()
	if len(failed) == 0 {
		m.log.Info().Str("template_id", templateID).Msg("nothing to retry")
		return prior, nil, nil
	}

	m.log.Info().
		Str("template_id", templateID).
		Int("recipients", len(failed)).
		Msg("retrying failed recipients")

	newResults, err := m.dispatcher.Dispatch(ctx, creds, templateID, failed, segments)
	if err != nil {
		return prior, failed, err
	}

	merged := prior.Clone()
	merged.Merge(newResults)
	return merged, failed, nil
}
