package services

import (
	"context"
	"log/slog"

	"ledger/internal/amqp"
	applog "ledger/internal/log"
)

// announce publishes e once its change has committed. A nil publisher
// disables events; failures are only logged.
func announce(ctx context.Context, publisher Publisher, logger *slog.Logger, e *amqp.LedgerEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishLedgerEvent(ctx, e); err != nil {
		logger.WarnContext(ctx, "Failed to publish ledger event",
			"kind", e.Kind,
			applog.FieldSubscriptionID, e.SubscriptionID,
			"entity_id", e.EntityID,
			applog.FieldError, err)
	}
}
