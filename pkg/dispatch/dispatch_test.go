package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (s *fakeSender) Send(_ context.Context, phoneNumber string, _ string, _ string) Outcome {
	s.mu.Lock()
	s.calls = append(s.calls, phoneNumber)
	s.mu.Unlock()

	if err, ok := s.fail[phoneNumber]; ok {
		return Outcome{PhoneNumber: phoneNumber, Status: StatusError, Error: err.Error()}
	}
	return Outcome{PhoneNumber: phoneNumber, Success: true, Status: StatusSent}
}

func (s *fakeSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// runJob submits a job and blocks until its completion callback fires.
func runJob(t *testing.T, r *Registry, recipients []string, delaySeconds int) Job {
	t.Helper()

	done := make(chan Job, 1)
	r.OnCompleted(func(job Job) { done <- job })

	submitted := r.Submit(recipients, "hello", "", delaySeconds)
	require.NotEmpty(t, submitted.ID)
	require.Equal(t, len(recipients), submitted.TotalCount)

	select {
	case job := <-done:
		return job
	case <-time.After(5 * time.Second):
		t.Fatal("job did not complete in time")
		return Job{}
	}
}

func newTestRegistry(sender Sender) (*Registry, *[]time.Duration) {
	r := NewRegistry(sender)
	sleeps := &[]time.Duration{}
	r.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return r, sleeps
}

func TestRunNoDelayAtOrBelowThreshold(t *testing.T) {
	for _, delaySeconds := range []int{0, 1, 3} {
		sender := &fakeSender{}
		r, sleeps := newTestRegistry(sender)

		job := runJob(t, r, []string{"5550001111", "5550002222", "5550003333"}, delaySeconds)

		require.Empty(t, *sleeps, "delaySeconds=%d", delaySeconds)
		require.Equal(t, JobCompleted, job.State)
		require.Equal(t, 3, job.SentCount)
		require.Equal(t, 0, job.FailedCount)
		require.Equal(t, []string{"5550001111", "5550002222", "5550003333"}, sender.sent())
	}
}

func TestRunRandomizedDelayRange(t *testing.T) {
	sender := &fakeSender{}
	r, sleeps := newTestRegistry(sender)

	// Cycle through the full [0, n) range the loop may request.
	var draws int
	r.randInt = func(n int) int {
		draw := draws % n
		draws++
		return draw
	}

	recipients := []string{"1", "2", "3", "4", "5"}
	job := runJob(t, r, recipients, 10)

	require.Len(t, *sleeps, len(recipients)-1, "no sleep before the first send")
	for _, d := range *sleeps {
		require.GreaterOrEqual(t, d, 3*time.Second)
		require.LessOrEqual(t, d, 10*time.Second)
	}
	require.Equal(t, len(recipients), job.SentCount)
}

func TestRunFailureDoesNotShortCircuit(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{"5550002222": errors.New("send failed")}}
	r, _ := newTestRegistry(sender)

	job := runJob(t, r, []string{"5550001111", "5550002222", "5550003333"}, 0)

	require.Equal(t, 2, job.SentCount)
	require.Equal(t, 1, job.FailedCount)
	require.Len(t, job.Outcomes, 3)
	require.Equal(t, StatusError, job.Outcomes[1].Status)
	require.Equal(t, "send failed", job.Outcomes[1].Error)
	require.Equal(t, StatusSent, job.Outcomes[2].Status)
	require.NotNil(t, job.CompletedAt)
}

func TestGetReturnsSnapshot(t *testing.T) {
	sender := &fakeSender{}
	r, _ := newTestRegistry(sender)

	job := runJob(t, r, []string{"5550001111"}, 0)

	got, ok := r.Get(job.ID)
	require.True(t, ok)
	require.Equal(t, JobCompleted, got.State)
	require.Equal(t, 1, got.TotalCount)

	// Mutating the snapshot must not leak into the registry.
	got.Outcomes[0].PhoneNumber = "mutated"
	again, ok := r.Get(job.ID)
	require.True(t, ok)
	require.Equal(t, "5550001111", again.Outcomes[0].PhoneNumber)
}

func TestGetUnknownJob(t *testing.T) {
	r, _ := newTestRegistry(&fakeSender{})
	_, ok := r.Get("no-such-job")
	require.False(t, ok)
}

func TestInterSendDelayBounds(t *testing.T) {
	r := NewRegistry(&fakeSender{})

	r.randInt = func(n int) int { return 0 }
	require.Equal(t, 3*time.Second, r.interSendDelay(10))

	r.randInt = func(n int) int { return n - 1 }
	require.Equal(t, 10*time.Second, r.interSendDelay(10))
}
