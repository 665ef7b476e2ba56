package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-broadcast/internal/gateway"
)

type fakeGateway struct {
	mu             sync.Mutex
	resp           *gateway.BulkSendResponse
	sendErr        error
	sendDelay      time.Duration
	progress       []gateway.Progress // scripted; last entry repeats
	progressErr    error
	progressCalls  int
	sentRecipients [][]string
}

func (f *fakeGateway) SendBulk(ctx context.Context, creds gateway.Credentials, templateID string, recipients []string, segments []gateway.Segment) (*gateway.BulkSendResponse, error) {
	f.mu.Lock()
	f.sentRecipients = append(f.sentRecipients, append([]string(nil), recipients...))
	f.mu.Unlock()

	if f.sendDelay > 0 {
		select {
		case <-time.After(f.sendDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.resp, nil
}

func (f *fakeGateway) BulkProgress(ctx context.Context, creds gateway.Credentials, templateID string) (gateway.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progressErr != nil {
		return gateway.Progress{}, f.progressErr
	}
	idx := f.progressCalls
	f.progressCalls++
	if idx >= len(f.progress) {
		idx = len(f.progress) - 1
	}
	if idx < 0 {
		return gateway.Progress{}, nil
	}
	return f.progress[idx], nil
}

func (f *fakeGateway) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progressCalls
}

func testOptions() Options {
	return Options{
		PollInterval:    2 * time.Millisecond,
		MaxPollAttempts: 100,
		Logger:          zerolog.Nop(),
	}
}

func TestDispatchPartitionsResults(t *testing.T) {
	gw := &fakeGateway{
		resp: &gateway.BulkSendResponse{
			Results: gateway.BulkResults{
				Success: []string{"A", "C"},
				Failed: []gateway.FailedRecipient{
					{Recipient: "B", Error: json.RawMessage(`{"code":131026}`)},
				},
			},
			Summary: gateway.BulkSummary{SuccessCount: 2, FailedCount: 1},
		},
	}

	orch := NewOrchestrator(gw, testOptions())
	results, err := orch.Dispatch(context.Background(), gateway.Credentials{}, "tmpl-1", []string{"A", "B", "C"}, nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if got := results["A"].Outcome; got != OutcomeSuccess {
		t.Errorf("A = %s, want SUCCESS", got)
	}
	if got := results["B"].Outcome; got != OutcomeFailure {
		t.Errorf("B = %s, want FAILURE", got)
	}
	if got := results["C"].Outcome; got != OutcomeSuccess {
		t.Errorf("C = %s, want SUCCESS", got)
	}
	if results["B"].Error == nil {
		t.Error("B should carry the opaque gateway error")
	}
	if orch.State() != StateCompleted {
		t.Errorf("state = %s, want COMPLETED", orch.State())
	}
}

func TestDispatchRejectedSubmissionIsFatal(t *testing.T) {
	gw := &fakeGateway{sendErr: errors.New("401 unauthorized")}

	orch := NewOrchestrator(gw, testOptions())
	results, err := orch.Dispatch(context.Background(), gateway.Credentials{}, "tmpl-1", []string{"A"}, nil)
	if err == nil {
		t.Fatal("expected submission error")
	}
	if results != nil {
		t.Errorf("rejected submission must not produce partial results, got %v", results)
	}
	if orch.State() != StateFailedToStart {
		t.Errorf("state = %s, want FAILED_TO_START", orch.State())
	}
}

func TestDispatchRequiresRecipients(t *testing.T) {
	orch := NewOrchestrator(&fakeGateway{}, testOptions())
	if _, err := orch.Dispatch(context.Background(), gateway.Credentials{}, "tmpl-1", nil, nil); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("expected ErrNoRecipients, got %v", err)
	}
}

func TestBatchComplete(t *testing.T) {
	tests := []struct {
		p    gateway.Progress
		want bool
	}{
		{gateway.Progress{Total: 0, Completed: 0}, false}, // not started, not done
		{gateway.Progress{Total: 5, Completed: 0}, false},
		{gateway.Progress{Total: 5, Completed: 3}, false},
		{gateway.Progress{Total: 5, Completed: 5}, true},
	}
	for _, tt := range tests {
		if got := batchComplete(tt.p); got != tt.want {
			t.Errorf("batchComplete(%+v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestDispatchReportsProgressWhileInFlight(t *testing.T) {
	gw := &fakeGateway{
		sendDelay: 40 * time.Millisecond,
		resp: &gateway.BulkSendResponse{
			Results: gateway.BulkResults{Success: []string{"A", "B", "C"}},
			Summary: gateway.BulkSummary{SuccessCount: 3},
		},
		progress: []gateway.Progress{
			{Total: 0, Completed: 0}, // not yet started
			{Total: 3, Completed: 1},
			{Total: 3, Completed: 3},
		},
	}

	var mu sync.Mutex
	var observed []gateway.Progress
	opts := testOptions()
	opts.OnProgress = func(p gateway.Progress) {
		mu.Lock()
		observed = append(observed, p)
		mu.Unlock()
	}

	orch := NewOrchestrator(gw, opts)
	if _, err := orch.Dispatch(context.Background(), gateway.Credentials{}, "tmpl-1", []string{"A", "B", "C"}, nil); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(observed) < 3 {
		t.Fatalf("expected at least 3 progress snapshots, got %d", len(observed))
	}
	last := observed[len(observed)-1]
	if !batchComplete(last) {
		t.Errorf("polling should have run until completion, last snapshot %+v", last)
	}
	// The zero-total snapshot must not have ended polling early.
	if observed[0].Total != 0 {
		t.Errorf("first snapshot should be the unstarted batch, got %+v", observed[0])
	}
}

func TestPollingStopsAtAttemptCap(t *testing.T) {
	gw := &fakeGateway{
		sendDelay: 60 * time.Millisecond,
		resp:      &gateway.BulkSendResponse{},
		progress:  []gateway.Progress{{Total: 0, Completed: 0}}, // stalled gateway
	}

	opts := testOptions()
	opts.MaxPollAttempts = 3

	orch := NewOrchestrator(gw, opts)
	if _, err := orch.Dispatch(context.Background(), gateway.Credentials{}, "tmpl-1", []string{"A"}, nil); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if calls := gw.calls(); calls > 3 {
		t.Errorf("poller exceeded attempt cap: %d calls", calls)
	}
}

func TestPollingErrorsAreTransient(t *testing.T) {
	gw := &fakeGateway{
		sendDelay:   20 * time.Millisecond,
		progressErr: errors.New("network blip"),
		resp: &gateway.BulkSendResponse{
			Results: gateway.BulkResults{Success: []string{"A"}},
			Summary: gateway.BulkSummary{SuccessCount: 1},
		},
	}

	orch := NewOrchestrator(gw, testOptions())
	results, err := orch.Dispatch(context.Background(), gateway.Credentials{}, "tmpl-1", []string{"A"}, nil)
	if err != nil {
		t.Fatalf("poll errors must not fail the dispatch: %v", err)
	}
	if results["A"].Outcome != OutcomeSuccess {
		t.Errorf("A = %s, want SUCCESS", results["A"].Outcome)
	}
}
