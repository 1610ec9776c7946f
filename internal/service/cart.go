package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/counter"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CountReporter receives the number of lines after every load and mutation.
type CountReporter interface {
	Report(ctx context.Context, sessionID string, count int) (counter.Update, error)
}

// EventPublisher publishes cart domain events.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, sessionID, operation string, lines []domain.CartLine, totals domain.Totals) error
	PublishCountChanged(ctx context.Context, sessionID string, count, previous int) error
}

// Options holds the cart policies taken from configuration.
type Options struct {
	DefaultCurrency   string
	EnforceStockLimit bool
	MaxLines          int
	MaxQuantity       int // per-line cap enforced by AddItem
}

// DefaultOptions returns the storefront defaults.
func DefaultOptions() Options {
	return Options{
		DefaultCurrency: domain.DefaultCurrency,
		MaxLines:        50,
		MaxQuantity:     99,
	}
}

// AddItemInput is a line added from a product page.
type AddItemInput struct {
	ProductID string         `json:"productId" validate:"required,notblank,max=64"`
	Size      string         `json:"size" validate:"required,notblank,max=16"`
	Quantity  int            `json:"quantity" validate:"gte=1,lte=10000"`
	Note      string         `json:"note,omitempty" validate:"max=500"`
	Product   domain.Product `json:"product"`
}

// CartService implements the cart aggregator over the persisted cart document.
type CartService struct {
	repo    repository.CartRepository
	counter CountReporter
	events  EventPublisher
	opts    Options
	logger  *slog.Logger
}

// NewCartService creates a CartService. events may be nil when publishing is
// disabled.
func NewCartService(repo repository.CartRepository, reporter CountReporter, events EventPublisher, opts Options, logger *slog.Logger) *CartService {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = domain.DefaultCurrency
	}
	return &CartService{
		repo:    repo,
		counter: reporter,
		events:  events,
		opts:    opts,
		logger:  logger,
	}
}

// Load returns the session's lines. A missing document is an empty cart; an
// unreadable one is logged and treated as empty. Storage failures are
// returned.
func (s *CartService) Load(ctx context.Context, sessionID string) ([]domain.CartLine, error) {
	lines, err := s.read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.reportCount(ctx, sessionID, len(lines))
	return lines, nil
}

// View loads the cart and renders it with totals.
func (s *CartService) View(ctx context.Context, sessionID string) (CartView, error) {
	lines, err := s.Load(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	return newCartView(lines, s.totals(ctx, sessionID, lines)), nil
}

// Totals loads the cart and returns its totals only.
func (s *CartService) Totals(ctx context.Context, sessionID string) (domain.Totals, error) {
	lines, err := s.read(ctx, sessionID)
	if err != nil {
		return domain.Totals{}, err
	}
	return s.totals(ctx, sessionID, lines), nil
}

// UpdateQuantity changes the quantity of the line (productID, size) by delta.
// The result is never below 1; it is capped at the available stock only when
// stock enforcement is enabled. A missing line leaves the cart unchanged.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, productID, size string, delta int) (CartView, error) {
	lines, err := s.read(ctx, sessionID)
	if err != nil {
		cartMutations.WithLabelValues(event.OperationUpdateQuantity, outcomeFailed).Inc()
		return CartView{}, err
	}

	idx := domain.FindLine(lines, productID, size)
	if idx < 0 {
		return s.noop(ctx, sessionID, event.OperationUpdateQuantity, lines, productID, size), nil
	}

	line := &lines[idx]
	previous := line.Quantity
	line.Quantity = domain.ApplyDelta(line.Quantity, delta, line.Product.AvailableStock(), s.opts.EnforceStockLimit)

	s.logger.InfoContext(ctx, "cart quantity updated",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID),
		slog.String("size", size),
		slog.Int("from", previous),
		slog.Int("to", line.Quantity),
	)

	return s.commit(ctx, sessionID, event.OperationUpdateQuantity, lines)
}

// RemoveItem deletes the line (productID, size). A missing line leaves the
// cart unchanged.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID, size string) (CartView, error) {
	return s.remove(ctx, sessionID, event.OperationRemove, productID, size)
}

// MoveToWishlist removes the line from the cart. No wishlist is stored; the
// result reports WishlistPersisted=false.
func (s *CartService) MoveToWishlist(ctx context.Context, sessionID, productID, size string) (WishlistResult, error) {
	view, err := s.remove(ctx, sessionID, event.OperationMoveToWishlist, productID, size)
	if err != nil {
		return WishlistResult{}, err
	}

	s.logger.WarnContext(ctx, "wishlist is not persisted, line was only removed from the cart",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID),
		slog.String("size", size),
	)
	return WishlistResult{CartView: view, WishlistPersisted: false}, nil
}

// AddItem adds a line, merging it into an existing line with the same
// product and size. The requested and the merged quantity must both stay within
// MaxQuantity.
func (s *CartService) AddItem(ctx context.Context, sessionID string, in AddItemInput) (CartView, error) {
	maxQty := s.maxQuantity()
	if in.Quantity < domain.MinQuantity {
		return CartView{}, apperrors.InvalidInput("quantity must be at least 1")
	}
	if in.Quantity > maxQty {
		return CartView{}, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", maxQty))
	}
	if err := in.Product.CheckAmounts(); err != nil {
		return CartView{}, apperrors.InvalidInput(err.Error())
	}

	lines, err := s.read(ctx, sessionID)
	if err != nil {
		cartMutations.WithLabelValues(event.OperationAdd, outcomeFailed).Inc()
		return CartView{}, err
	}

	if idx := domain.FindLine(lines, in.ProductID, in.Size); idx >= 0 {
		line := &lines[idx]
		if in.Quantity > maxQty-line.Quantity {
			cartMutations.WithLabelValues(event.OperationAdd, outcomeFailed).Inc()
			return CartView{}, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", maxQty))
		}
		line.Quantity += in.Quantity
		line.Product = in.Product
		if in.Note != "" {
			line.Note = in.Note
		}
	} else {
		if s.opts.MaxLines > 0 && len(lines) >= s.opts.MaxLines {
			cartMutations.WithLabelValues(event.OperationAdd, outcomeFailed).Inc()
			return CartView{}, apperrors.Conflict(fmt.Sprintf("cart already holds %d lines", len(lines)))
		}
		lines = append(lines, domain.CartLine{
			ProductID: in.ProductID,
			Size:      in.Size,
			Quantity:  in.Quantity,
			Note:      in.Note,
			Product:   in.Product,
		})
	}

	idx := domain.FindLine(lines, in.ProductID, in.Size)
	line := &lines[idx]
	if s.opts.EnforceStockLimit {
		avail := line.Product.AvailableStock()
		if avail < domain.MinQuantity {
			cartMutations.WithLabelValues(event.OperationAdd, outcomeFailed).Inc()
			return CartView{}, apperrors.Conflict(fmt.Sprintf("product %s size %s is out of stock", in.ProductID, in.Size))
		}
		if line.Quantity > avail {
			line.Quantity = avail
		}
	}

	s.logger.InfoContext(ctx, "cart line added",
		slog.String("session_id", sessionID),
		slog.String("product_id", in.ProductID),
		slog.String("size", in.Size),
		slog.Int("quantity", line.Quantity),
	)

	return s.commit(ctx, sessionID, event.OperationAdd, lines)
}

// maxQuantity is the configured per-line cap, falling back to MaxLineQuantity.
func (s *CartService) maxQuantity() int {
	if s.opts.MaxQuantity > 0 && s.opts.MaxQuantity < domain.MaxLineQuantity {
		return s.opts.MaxQuantity
	}
	return domain.MaxLineQuantity
}

// Clear removes every line of the session.
func (s *CartService) Clear(ctx context.Context, sessionID string) (CartView, error) {
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		cartMutations.WithLabelValues(event.OperationClear, outcomeFailed).Inc()
		return CartView{}, fmt.Errorf("clear cart: %w", err)
	}
	cartMutations.WithLabelValues(event.OperationClear, outcomeApplied).Inc()

	s.logger.InfoContext(ctx, "cart cleared", slog.String("session_id", sessionID))

	totals := domain.ComputeTotals(nil, s.opts.DefaultCurrency)
	s.publishUpdated(ctx, sessionID, event.OperationClear, nil, totals)
	s.reportCount(ctx, sessionID, 0)
	return newCartView(nil, totals), nil
}

func (s *CartService) remove(ctx context.Context, sessionID, operation, productID, size string) (CartView, error) {
	lines, err := s.read(ctx, sessionID)
	if err != nil {
		cartMutations.WithLabelValues(operation, outcomeFailed).Inc()
		return CartView{}, err
	}

	idx := domain.FindLine(lines, productID, size)
	if idx < 0 {
		return s.noop(ctx, sessionID, operation, lines, productID, size), nil
	}

	kept := make([]domain.CartLine, 0, len(lines)-1)
	kept = append(kept, lines[:idx]...)
	kept = append(kept, lines[idx+1:]...)

	s.logger.InfoContext(ctx, "cart line removed",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID),
		slog.String("size", size),
	)

	return s.commit(ctx, sessionID, operation, kept)
}

// read loads the document without reporting the count.
func (s *CartService) read(ctx context.Context, sessionID string) ([]domain.CartLine, error) {
	lines, err := s.repo.Get(ctx, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrNotFound):
		return []domain.CartLine{}, nil
	case errors.Is(err, apperrors.ErrCorruptData):
		cartLoadFailures.WithLabelValues("corrupt").Inc()
		s.logger.ErrorContext(ctx, "discarding unreadable cart document",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return []domain.CartLine{}, nil
	default:
		cartLoadFailures.WithLabelValues("storage").Inc()
		return nil, fmt.Errorf("load cart: %w", err)
	}

	if lines == nil {
		lines = []domain.CartLine{}
	}
	return sanitize(lines), nil
}

// sanitize drops lines without an identity, lifts quantities below 1 and
// folds lines sharing (productId, size) into the first one, summing their
// quantities. The first line keeps its snapshot and position.
func sanitize(lines []domain.CartLine) []domain.CartLine {
	type key struct{ productID, size string }
	seen := make(map[key]int, len(lines))
	out := lines[:0]
	for _, l := range lines {
		if l.ProductID == "" {
			continue
		}
		if l.Quantity < domain.MinQuantity {
			l.Quantity = domain.MinQuantity
		}
		k := key{l.ProductID, l.Size}
		if i, ok := seen[k]; ok {
			out[i].Quantity = domain.AddQuantity(out[i].Quantity, l.Quantity)
			continue
		}
		seen[k] = len(out)
		out = append(out, l)
	}
	return out
}

// commit persists lines and runs the side effects of a mutation.
func (s *CartService) commit(ctx context.Context, sessionID, operation string, lines []domain.CartLine) (CartView, error) {
	if err := s.repo.Save(ctx, sessionID, lines); err != nil {
		cartMutations.WithLabelValues(operation, outcomeFailed).Inc()
		return CartView{}, fmt.Errorf("save cart: %w", err)
	}
	cartMutations.WithLabelValues(operation, outcomeApplied).Inc()

	totals := s.totals(ctx, sessionID, lines)
	cartGrandTotal.WithLabelValues(totals.Currency).Observe(totals.GrandTotal.InexactFloat64())

	s.publishUpdated(ctx, sessionID, operation, lines, totals)
	s.reportCount(ctx, sessionID, len(lines))
	return newCartView(lines, totals), nil
}

func (s *CartService) noop(ctx context.Context, sessionID, operation string, lines []domain.CartLine, productID, size string) CartView {
	cartMutations.WithLabelValues(operation, outcomeNoop).Inc()
	s.logger.DebugContext(ctx, "cart line not found, nothing to change",
		slog.String("session_id", sessionID),
		slog.String("operation", operation),
		slog.String("product_id", productID),
		slog.String("size", size),
	)
	s.reportCount(ctx, sessionID, len(lines))
	return newCartView(lines, s.totals(ctx, sessionID, lines))
}

func (s *CartService) totals(ctx context.Context, sessionID string, lines []domain.CartLine) domain.Totals {
	t := domain.ComputeTotals(lines, s.opts.DefaultCurrency)
	if t.MixedCurrency {
		cartMixedCurrency.Inc()
		s.logger.WarnContext(ctx, "cart mixes currencies, totals are not converted",
			slog.String("session_id", sessionID),
			slog.String("currency", t.Currency),
		)
	}
	return t
}

// reportCount forwards the line count to the badge. Failures only affect the
// badge and are logged.
func (s *CartService) reportCount(ctx context.Context, sessionID string, count int) {
	u, err := s.counter.Report(ctx, sessionID, count)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to report cart count",
			slog.String("session_id", sessionID),
			slog.Int("count", count),
			slog.String("error", err.Error()),
		)
		return
	}
	if s.events == nil || (!u.Initial && u.Count == u.Previous) {
		return
	}
	if err := s.events.PublishCountChanged(ctx, sessionID, u.Count, u.Previous); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.count_changed event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CartService) publishUpdated(ctx context.Context, sessionID, operation string, lines []domain.CartLine, totals domain.Totals) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishCartUpdated(ctx, sessionID, operation, lines, totals); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("session_id", sessionID),
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
	}
}
