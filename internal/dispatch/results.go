package dispatch

import (
	"encoding/json"
	"sort"

	"whatsapp-broadcast/internal/gateway"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// Result is the per-recipient record produced by a dispatch batch or retry.
// Error holds the opaque gateway error detail on failure.
type Result struct {
	Recipient string          `json:"recipient"`
	Outcome   Outcome         `json:"outcome"`
	Error     json.RawMessage `json:"error,omitempty"`
}

// ResultSet keys results by recipient identifier. A recipient has exactly
// one entry per logical sending session; a retry replaces it, never appends.
type ResultSet map[string]Result

// FromBulkResponse builds the result table from the authoritative bulk
// response partition.
func FromBulkResponse(resp *gateway.BulkSendResponse) ResultSet {
	rs := make(ResultSet, len(resp.Results.Success)+len(resp.Results.Failed))
	for _, recipient := range resp.Results.Success {
		rs[recipient] = Result{Recipient: recipient, Outcome: OutcomeSuccess}
	}
	for _, failed := range resp.Results.Failed {
		rs[failed.Recipient] = Result{
			Recipient: failed.Recipient,
			Outcome:   OutcomeFailure,
			Error:     failed.Error,
		}
	}
	return rs
}

// Failed returns the recipients whose latest outcome is FAILURE, sorted for
// deterministic resubmission order.
func (rs ResultSet) Failed() []string {
	var failed []string
	for recipient, result := range rs {
		if result.Outcome == OutcomeFailure {
			failed = append(failed, recipient)
		}
	}
	sort.Strings(failed)
	return failed
}

// Merge overwrites entries with the newer outcomes in other; entries for
// recipients not present in other are left untouched.
func (rs ResultSet) Merge(other ResultSet) {
	for recipient, result := range other {
		rs[recipient] = result
	}
}

// Clone returns an independent copy so a merge never mutates the prior table.
func (rs ResultSet) Clone() ResultSet {
	cp := make(ResultSet, len(rs))
	for recipient, result := range rs {
		cp[recipient] = result
	}
	return cp
}
