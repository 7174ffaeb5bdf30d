package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
)

// CreateUserParams captures atomic registration inputs. The referrer link is
// set here or never; re-parenting is not a supported operation.
type CreateUserParams struct {
	Name            string
	ReferrerID      *uuid.UUID
	RegisteredAtUTC time.Time
}

// UserRepository defines persistence for identities and the referral forest.
// The transactional create enforces user+counter+outbox consistency, and the
// id-expansion methods back the depth-bounded network index.
type UserRepository interface {
	CreateWithOutboxTx(ctx context.Context, params CreateUserParams, outboxEvent OutboxEvent) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	GetByReferralCode(ctx context.Context, code string) (domain.User, error)
	List(ctx context.Context, limit, offset int) ([]domain.User, int, error)
	// AssignCodeWithOutboxTx sets a code only when none exists yet and writes
	// the issuance outbox event in the same transaction. A unique-index
	// collision with another user's code surfaces as domain.ErrConflict.
	AssignCodeWithOutboxTx(ctx context.Context, userID uuid.UUID, code string, outboxEvent OutboxEvent, at time.Time) error
	// ListChildIDs returns the direct children of the given parents in
	// registration order (created_at, then id) so pagination stays stable as
	// new users join.
	ListChildIDs(ctx context.Context, parentIDs []uuid.UUID) ([]uuid.UUID, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]domain.User, error)
}

// ProfileRepository stores the 1:1 commission override record. Get returns a
// zero-value profile when none was ever written for the user.
type ProfileRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (domain.CommissionProfile, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.CommissionProfile, error)
	// Upsert writes the profile and mirrors the KOL/waived flags onto the user
	// row in one transaction.
	Upsert(ctx context.Context, profile domain.CommissionProfile) error
}

// ProcessedTrade is the dedup marker persisted with each accrual batch.
// Its unique trade id is what makes replayed events exactly-once.
type ProcessedTrade struct {
	TradeID     string
	UserID      uuid.UUID
	Volume      decimal.Decimal
	Fee         decimal.Decimal
	TradeType   string
	ProcessedAt time.Time
}

// ClaimAllResult reports what a claim-all transaction actually settled.
type ClaimAllResult struct {
	Settled decimal.Decimal
	Count   int
}

// CommissionRepository owns the append-mostly ledger. Only the claimed flag is
// ever mutated, via compare-and-set so settlement stays correct across
// concurrent service instances.
type CommissionRepository interface {
	// CreateTradeBatchTx persists the processed-trade marker, every record of
	// the batch, beneficiary counters and the accrual outbox event atomically.
	// A replayed trade id returns domain.ErrDuplicateTrade with no writes.
	CreateTradeBatchTx(ctx context.Context, trade ProcessedTrade, records []domain.CommissionRecord, outboxEvent OutboxEvent) error
	ListByUser(ctx context.Context, userID uuid.UUID, from, to *time.Time) ([]domain.CommissionRecord, error)
	// ClaimOne flips claimed on a single unclaimed record owned by the user.
	// Exactly one of concurrent duplicate calls succeeds; the rest observe
	// domain.ErrAlreadyClaimed.
	ClaimOne(ctx context.Context, userID, commissionID uuid.UUID, at time.Time) (domain.CommissionRecord, error)
	// ClaimAll flips every currently-unclaimed record of the user in one
	// transaction, regardless of the token each record was minted in; records
	// settled concurrently by ClaimOne are not counted.
	ClaimAll(ctx context.Context, userID uuid.UUID, at time.Time) (ClaimAllResult, error)
}

// OutboxEvent is the write-side event payload prior to storage.
// It is adapter-neutral to keep application code independent of broker specifics.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for domain events.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
