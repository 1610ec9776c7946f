package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topic constants for storefront cart events.
const (
	TopicCartUpdated      = "storefront.cart.updated"
	TopicCartCountChanged = "storefront.cart.count_changed"
)

// Event type constants.
const (
	EventCartUpdated      = "cart.updated"
	EventCartCountChanged = "cart.count_changed"
)

// Aggregate type constant.
const AggregateTypeCart = "cart"

// Source identifier for events originating from the storefront service.
const SourceStorefront = "storefront-service"

// Cart mutation names carried in cart.updated events.
const (
	OperationAdd            = "add"
	OperationUpdateQuantity = "update_quantity"
	OperationRemove         = "remove"
	OperationMoveToWishlist = "move_to_wishlist"
	OperationClear          = "clear"
)

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID  string          `json:"session_id"`
	Operation  string          `json:"operation"`
	Items      []CartItemData  `json:"items"`
	ItemCount  int             `json:"item_count"`
	SubTotal   decimal.Decimal `json:"sub_total"`
	Shipping   decimal.Decimal `json:"shipping"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Currency   string          `json:"currency"`
}

// CartItemData is the line payload within cart events.
type CartItemData struct {
	ProductID string          `json:"product_id"`
	Size      string          `json:"size"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// CountChangedData is the payload for a cart.count_changed event.
type CountChangedData struct {
	SessionID string `json:"session_id"`
	Count     int    `json:"count"`
	Previous  int    `json:"previous"`
}

// Producer publishes storefront cart events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the storefront service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event describing the lines after
// a mutation.
func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID, operation string, lines []domain.CartLine, totals domain.Totals) error {
	items := make([]CartItemData, len(lines))
	for i, l := range lines {
		price, _ := domain.ResolvePrice(l)
		items[i] = CartItemData{
			ProductID: l.ProductID,
			Size:      l.Size,
			Name:      l.Product.Name,
			UnitPrice: price,
			Quantity:  l.Quantity,
		}
	}

	data := CartUpdatedData{
		SessionID:  sessionID,
		Operation:  operation,
		Items:      items,
		ItemCount:  len(lines),
		SubTotal:   totals.SubTotal,
		Shipping:   totals.Shipping,
		GrandTotal: totals.GrandTotal,
		Currency:   totals.Currency,
	}

	event, err := pkgkafka.NewEvent(EventCartUpdated, sessionID, AggregateTypeCart, SourceStorefront, data,
		pkgkafka.WithCorrelationID(logger.CorrelationIDFromContext(ctx)))
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session_id", sessionID),
		slog.String("operation", operation),
		slog.Int("item_count", len(lines)),
	)

	return nil
}

// PublishCountChanged publishes a cart.count_changed event.
func (p *Producer) PublishCountChanged(ctx context.Context, sessionID string, count, previous int) error {
	data := CountChangedData{SessionID: sessionID, Count: count, Previous: previous}

	event, err := pkgkafka.NewEvent(EventCartCountChanged, sessionID, AggregateTypeCart, SourceStorefront, data,
		pkgkafka.WithCorrelationID(logger.CorrelationIDFromContext(ctx)))
	if err != nil {
		return fmt.Errorf("create cart.count_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartCountChanged, event); err != nil {
		return fmt.Errorf("publish cart.count_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.count_changed event",
		slog.String("session_id", sessionID),
		slog.Int("count", count),
	)

	return nil
}
