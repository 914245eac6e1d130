package dispatch

import (
	"context"
	mathrand "math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/log"
)

type Status string

const (
	StatusSent          Status = "sent"
	StatusNotRegistered Status = "not_registered"
	StatusError         Status = "error"
)

type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
)

// Outcome is the per-recipient result of one send attempt.
type Outcome struct {
	PhoneNumber string `json:"phoneNumber"`
	Success     bool   `json:"success"`
	Status      Status `json:"status"`
	Error       string `json:"error,omitempty"`
}

// Sender performs exactly one external call sequence per invocation.
type Sender interface {
	Send(ctx context.Context, phoneNumber string, message string, mediaPath string) Outcome
}

type Job struct {
	ID           string     `json:"jobId"`
	State        JobState   `json:"state"`
	Message      string     `json:"-"`
	MediaPath    string     `json:"-"`
	Recipients   []string   `json:"-"`
	DelaySeconds int        `json:"delaySeconds"`
	TotalCount   int        `json:"totalCount"`
	SentCount    int        `json:"sentCount"`
	FailedCount  int        `json:"failedCount"`
	Outcomes     []Outcome  `json:"outcomes"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Registry owns all broadcast jobs for the process lifetime. Jobs live
// in memory only; a restart drops them.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	sender Sender

	// Injection points for tests.
	sleep   func(time.Duration)
	randInt func(n int) int

	// Invoked after a job finishes, outside the registry lock.
	onCompleted func(Job)
}

func NewRegistry(sender Sender) *Registry {
	return &Registry{
		jobs:    make(map[string]*Job),
		sender:  sender,
		sleep:   time.Sleep,
		randInt: mathrand.IntN,
	}
}

// OnCompleted registers a completion callback; it receives a snapshot.
func (r *Registry) OnCompleted(fn func(Job)) {
	r.onCompleted = fn
}

// Submit registers a job and starts its dispatch loop in the background.
// It returns immediately with the job snapshot for the acknowledgment.
func (r *Registry) Submit(recipients []string, message string, mediaPath string, delaySeconds int) Job {
	job := &Job{
		ID:           uuid.NewString(),
		State:        JobRunning,
		Message:      message,
		MediaPath:    mediaPath,
		Recipients:   recipients,
		DelaySeconds: delaySeconds,
		TotalCount:   len(recipients),
		Outcomes:     make([]Outcome, 0, len(recipients)),
		CreatedAt:    time.Now(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	go r.run(job)

	return r.snapshot(job.ID)
}

// Get returns a consistent snapshot of the job with the given id.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	_, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Job{}, false
	}
	return r.snapshot(id), true
}

func (r *Registry) snapshot(id string) Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job := r.jobs[id]
	copied := *job
	copied.Outcomes = append([]Outcome(nil), job.Outcomes...)
	copied.Recipients = append([]string(nil), job.Recipients...)
	return copied
}

// run is the dispatch loop. It never short-circuits: a failed send does
// not stop subsequent sends, and there is no cancellation once started.
func (r *Registry) run(job *Job) {
	log.Job(job.ID).
		WithField("recipients", job.TotalCount).
		WithField("delay_seconds", job.DelaySeconds).
		WithField("has_media", job.MediaPath != "").
		Info("Broadcast job started")

	for i, phoneNumber := range job.Recipients {
		if i > 0 && job.DelaySeconds > 3 {
			delay := r.interSendDelay(job.DelaySeconds)
			log.Job(job.ID).WithField("delay", delay.String()).Info("Waiting before next send")
			r.sleep(delay)
		}

		outcome := r.sender.Send(context.Background(), phoneNumber, job.Message, job.MediaPath)

		r.mu.Lock()
		job.Outcomes = append(job.Outcomes, outcome)
		if outcome.Success {
			job.SentCount++
		} else {
			job.FailedCount++
		}
		r.mu.Unlock()

		entry := log.Job(job.ID).
			WithField("recipient", phoneNumber).
			WithField("status", string(outcome.Status)).
			WithField("progress", i+1).
			WithField("total", job.TotalCount)
		if outcome.Success {
			entry.Info("Message dispatched")
		} else {
			entry.WithField("error", outcome.Error).Warn("Message not delivered")
		}
	}

	now := time.Now()
	r.mu.Lock()
	job.State = JobCompleted
	job.CompletedAt = &now
	r.mu.Unlock()

	snapshot := r.snapshot(job.ID)
	log.Job(job.ID).
		WithField("sent", snapshot.SentCount).
		WithField("failed", snapshot.FailedCount).
		Info("Broadcast job completed")

	if r.onCompleted != nil {
		r.onCompleted(snapshot)
	}
}

// interSendDelay picks a uniform random whole number of seconds in
// [3, delaySeconds]. Callers guarantee delaySeconds > 3.
func (r *Registry) interSendDelay(delaySeconds int) time.Duration {
	seconds := 3 + r.randInt(delaySeconds-3+1)
	return time.Duration(seconds) * time.Second
}
