// Package webhook pushes broadcast completion events to an operator
// supplied HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/env"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/log"
)

const (
	queueCapacity   = 64
	maxAttempts     = 3
	attemptInterval = 5 * time.Second
	requestTimeout  = 10 * time.Second
)

// Notifier delivers job completion payloads through a bounded queue and
// a single worker. A nil Notifier is valid and drops every event.
type Notifier struct {
	url     string
	secret  string
	queue   chan dispatch.Job
	client  *http.Client
	limiter *rate.Limiter
}

// NewFromEnv returns nil when BROADCAST_WEBHOOK_URL is unset, which
// disables delivery entirely.
func NewFromEnv() *Notifier {
	url, err := env.GetEnvString("BROADCAST_WEBHOOK_URL")
	if err != nil || url == "" {
		return nil
	}

	notifier := &Notifier{
		url:     url,
		secret:  env.GetEnvStringOrDefault("BROADCAST_WEBHOOK_SECRET", ""),
		queue:   make(chan dispatch.Job, queueCapacity),
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	go notifier.worker()

	log.Op("Webhook").Info("Completion webhook enabled, target=" + url)
	return notifier
}

// NotifyJobCompleted enqueues without blocking; when the queue is full
// the event is dropped and logged.
func (n *Notifier) NotifyJobCompleted(job dispatch.Job) {
	if n == nil {
		return
	}
	select {
	case n.queue <- job:
	default:
		log.Job(job.ID).Warn("Webhook queue is full, dropping completion event")
	}
}

func (n *Notifier) worker() {
	for job := range n.queue {
		if err := n.limiter.Wait(context.Background()); err != nil {
			return
		}
		n.deliver(job)
	}
}

func (n *Notifier) deliver(job dispatch.Job) {
	body, err := json.Marshal(job)
	if err != nil {
		log.Job(job.ID).WithError(err).Error("Failed to encode webhook payload")
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := n.post(body); err != nil {
			log.Job(job.ID).
				WithField("attempt", attempt).
				WithError(err).
				Warn("Webhook delivery failed")
			if attempt < maxAttempts {
				time.Sleep(attemptInterval)
			}
			continue
		}
		log.Job(job.ID).WithField("attempt", attempt).Info("Webhook delivered")
		return
	}
	log.Job(job.ID).Error("Webhook delivery abandoned after retries")
}

func (n *Notifier) post(body []byte) error {
	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set("X-Webhook-Signature", Signature(n.secret, body))
	}

	res, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &statusError{code: res.StatusCode}
	}
	return nil
}

// Signature is the hex HMAC-SHA256 of the payload under the shared
// secret, matching what receivers should recompute.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	text := http.StatusText(e.code)
	if text == "" {
		text = "unknown"
	}
	return fmt.Sprintf("webhook endpoint returned status %d %s", e.code, text)
}
