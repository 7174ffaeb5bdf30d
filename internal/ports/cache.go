package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TradeJobStatusQueued     = "queued"
	TradeJobStatusProcessing = "processing"
	TradeJobStatusDone       = "done"
	TradeJobStatusFailed     = "failed"
)

// TradeJob tracks one webhook-ingested trade through asynchronous accrual so
// callers can poll the acknowledgment they received.
type TradeJob struct {
	JobID       string     `json:"job_id"`
	WebhookID   string     `json:"webhook_id"`
	TradeID     string     `json:"trade_id"`
	UserID      uuid.UUID  `json:"user_id"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TradeJobStore is the short-lived job status cache behind the trade webhook.
// Entries expire with a TTL; the commission ledger, not this store, is the
// durable record of what a trade produced.
type TradeJobStore interface {
	Put(ctx context.Context, job TradeJob, ttl time.Duration) error
	Get(ctx context.Context, jobID string) (*TradeJob, error)
}
