package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/Repuestos-api/internal/application/inventory"
)

var _ inventory.AuditNotifier = (*AuditPublisher)(nil)

type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// AuditPublisher publica cada transición confirmada en un stream de Redis.
type AuditPublisher struct {
	client streamClient
	stream string
	maxLen int64
}

// NewAuditPublisher construye el publicador. maxLen 0 no recorta el stream.
func NewAuditPublisher(client streamClient, stream string, maxLen int64) *AuditPublisher {
	return &AuditPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Notify agrega el evento al stream.
func (p *AuditPublisher) Notify(ctx context.Context, event inventory.AuditEvent) error {
	values, err := encodeEvent(event)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{Stream: p.stream, Values: values}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publicar auditoría: %w", err)
	}
	return nil
}

func encodeEvent(event inventory.AuditEvent) (map[string]interface{}, error) {
	values := map[string]interface{}{
		"transaction_id":     event.TransactionID,
		"transaction_number": event.TransactionNumber,
		"from_status":        string(event.FromStatus),
		"to_status":          string(event.ToStatus),
		"user_id":            event.UserID,
		"notes":              event.Notes,
		"occurred_at":        event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if event.InventoryUpdate != nil {
		raw, err := json.Marshal(map[string]interface{}{
			"success":       event.InventoryUpdate.Success,
			"total_updated": event.InventoryUpdate.TotalUpdated,
			"total_failed":  event.InventoryUpdate.TotalFailed,
			"message":       event.InventoryUpdate.Message,
		})
		if err != nil {
			return nil, fmt.Errorf("codificar inventory_update: %w", err)
		}
		values["inventory_update"] = string(raw)
	}
	return values, nil
}
