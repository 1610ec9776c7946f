package repository

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
)

// CartRepository defines the interface for cart persistence operations. A
// session's cart is stored as one document holding its line list.
type CartRepository interface {
	// Get retrieves the line list of a session. A missing document yields a
	// NotFound error; an undecodable one wraps errors.ErrCorruptData.
	Get(ctx context.Context, sessionID string) ([]domain.CartLine, error)

	// Save persists the full line list, overwriting the previous document.
	Save(ctx context.Context, sessionID string, lines []domain.CartLine) error

	// Delete removes the document of a session.
	Delete(ctx context.Context, sessionID string) error
}

// CountryRepository stores the shopper's confirmed country selection.
type CountryRepository interface {
	// GetSelected returns the saved country code, or a NotFound error.
	GetSelected(ctx context.Context, sessionID string) (string, error)

	// SaveSelected persists the country code for the session.
	SaveSelected(ctx context.Context, sessionID, code string) error
}
