package service

import (
	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
)

// LineView is one cart row as rendered by the storefront.
type LineView struct {
	ProductID      string          `json:"productId"`
	Size           string          `json:"size"`
	Name           string          `json:"name"`
	VariantColor   string          `json:"variantColor,omitempty"`
	Note           string          `json:"note,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	LineTotal      decimal.Decimal `json:"lineTotal"`
	Currency       string          `json:"currency"`
	AvailableStock int             `json:"availableStock"`
	CanIncrement   bool            `json:"canIncrement"`
	CanDecrement   bool            `json:"canDecrement"`
	LowStock       bool            `json:"lowStock"`
	ImageURL       string          `json:"imageUrl"`
}

// CartView is the rendered cart: rows, totals and the badge count.
type CartView struct {
	Lines        []LineView    `json:"lines"`
	Totals       domain.Totals `json:"totals"`
	Count        int           `json:"count"`
	FreeShipping bool          `json:"freeShipping"`
}

// WishlistResult is returned by MoveToWishlist. The wishlist itself is not
// stored, which WishlistPersisted makes visible to the client.
type WishlistResult struct {
	CartView
	WishlistPersisted bool `json:"wishlistPersisted"`
}

func newLineView(l domain.CartLine) LineView {
	price, currency := domain.ResolvePrice(l)
	return LineView{
		ProductID:      l.ProductID,
		Size:           l.Size,
		Name:           l.Product.Name,
		VariantColor:   l.Product.VariantColor,
		Note:           l.Note,
		Quantity:       l.Quantity,
		UnitPrice:      price,
		LineTotal:      domain.LineTotal(l),
		Currency:       currency,
		AvailableStock: l.Product.AvailableStock(),
		CanIncrement:   domain.CanIncrement(l),
		CanDecrement:   domain.CanDecrement(l),
		LowStock:       domain.LowStock(l.Product),
		ImageURL:       l.Product.ImageURL(),
	}
}

func newCartView(lines []domain.CartLine, totals domain.Totals) CartView {
	rows := make([]LineView, len(lines))
	for i, l := range lines {
		rows[i] = newLineView(l)
	}
	return CartView{
		Lines:        rows,
		Totals:       totals,
		Count:        len(lines),
		FreeShipping: totals.Shipping.IsZero(),
	}
}
