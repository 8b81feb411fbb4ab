package checkout

import (
	"context"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

// Publisher announces finalized orders to other systems.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, o *order.Order) error
}

// NopPublisher discards events.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

func (NopPublisher) PublishOrderCreated(context.Context, *order.Order) error { return nil }
