package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/ports"
)

// TradeConsumerWorker feeds broker trade events into commission accrual.
// Malformed or replayed messages are logged and skipped so one bad event
// never stalls the stream.
type TradeConsumerWorker struct {
	logger   *slog.Logger
	consumer ports.EventConsumer
	service  *application.Service
	interval time.Duration
}

func NewTradeConsumerWorker(logger *slog.Logger, consumer ports.EventConsumer, service *application.Service, interval time.Duration) *TradeConsumerWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &TradeConsumerWorker{
		logger: logger, consumer: consumer, service: service, interval: interval,
	}
}

func (w *TradeConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "trade consumer iteration failed",
				"module", "events.trade_consumer",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type tradeExecutedPayload struct {
	TradeID   string          `json:"tradeId"`
	UserID    uuid.UUID       `json:"userId"`
	Volume    decimal.Decimal `json:"volume"`
	Fee       decimal.Decimal `json:"fee"`
	TradeType string          `json:"tradeType"`
}

func (w *TradeConsumerWorker) processOnce(ctx context.Context) error {
	msgs, err := w.consumer.Poll(ctx, 50)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if msg.Topic != domain.EventTradeExecuted {
			continue
		}
		var payload tradeExecutedPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			w.logger.WarnContext(ctx, "malformed trade event skipped",
				"module", "events.trade_consumer",
				"layer", "adapter",
				"operation", "decode_trade",
				"outcome", "failure",
				"error", err,
			)
			continue
		}

		result, err := w.service.ProcessTrade(ctx, domain.TradeEvent{
			TradeID:    payload.TradeID,
			UserID:     payload.UserID,
			Volume:     payload.Volume,
			Fee:        payload.Fee,
			TradeType:  payload.TradeType,
			ReceivedAt: time.Now().UTC(),
		})
		if err != nil {
			w.logger.WarnContext(ctx, "trade accrual failed",
				"module", "events.trade_consumer",
				"layer", "adapter",
				"operation", "process_trade",
				"outcome", "failure",
				"trade_id", payload.TradeID,
				"error", err,
			)
			continue
		}
		if result.Duplicate {
			w.logger.InfoContext(ctx, "replayed trade skipped",
				"module", "events.trade_consumer",
				"layer", "adapter",
				"operation", "process_trade",
				"outcome", "success",
				"trade_id", payload.TradeID,
			)
		}
	}
	return nil
}
