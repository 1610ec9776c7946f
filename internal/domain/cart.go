package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// CartLine is one entry in a session's persisted cart. A line is identified by
// (ProductID, Size); no two lines in a cart share both.
type CartLine struct {
	ProductID string  `json:"productId"`
	Size      string  `json:"size"`
	Quantity  int     `json:"quantity"`
	Note      string  `json:"note,omitempty"`
	Product   Product `json:"product"`
}

// Product is the product snapshot embedded in a line when it was added.
type Product struct {
	ProductObjectID  string           `json:"productObjectId,omitempty"`
	Name             string           `json:"name"`
	Images           []Image          `json:"images,omitempty"`
	VariantColor     string           `json:"variantColor,omitempty"`
	StockQuantity    int              `json:"stockQuantity"`
	ReservedQuantity int              `json:"reservedQuantity"`
	Currency         string           `json:"currency"`
	Country          string           `json:"country,omitempty"`
	UnitPrice        *decimal.Decimal `json:"unitPrice,omitempty"`
	PriceList        []PriceEntry     `json:"priceList,omitempty"`
	CountryPrice     *CountryPrice    `json:"countryPrice,omitempty"`
}

// Image is a product image.
type Image struct {
	URL          string `json:"url,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// PriceEntry is one variant price keyed by currency, size and country.
type PriceEntry struct {
	Currency    string          `json:"currency"`
	Size        string          `json:"size"`
	Country     string          `json:"country,omitempty"`
	PriceAmount decimal.Decimal `json:"priceAmount"`
}

// CountryPrice is the flat shipping contribution of a product for a country.
type CountryPrice struct {
	PriceAmount decimal.Decimal `json:"priceAmount"`
}

// AvailableStock returns stockQuantity minus reservedQuantity, floored at 0.
func (p Product) AvailableStock() int {
	if avail := p.StockQuantity - p.ReservedQuantity; avail > 0 {
		return avail
	}
	return 0
}

// MaxAmount is the largest price or shipping amount a snapshot may carry.
var MaxAmount = decimal.NewFromInt(100_000_000)

// Snapshot validation errors.
var (
	ErrNegativeStock = errors.New("stock must not be negative")
	ErrNegativePrice = errors.New("price must not be negative")
	ErrPriceTooLarge = errors.New("price exceeds maximum allowed value")
)

// CheckAmounts rejects a snapshot whose stock counts or amounts are negative,
// or whose amounts exceed MaxAmount.
func (p Product) CheckAmounts() error {
	if p.StockQuantity < 0 || p.ReservedQuantity < 0 {
		return ErrNegativeStock
	}
	amounts := make([]decimal.Decimal, 0, len(p.PriceList)+2)
	if p.UnitPrice != nil {
		amounts = append(amounts, *p.UnitPrice)
	}
	for _, e := range p.PriceList {
		amounts = append(amounts, e.PriceAmount)
	}
	if p.CountryPrice != nil {
		amounts = append(amounts, p.CountryPrice.PriceAmount)
	}
	for _, a := range amounts {
		if a.IsNegative() {
			return ErrNegativePrice
		}
		if a.GreaterThan(MaxAmount) {
			return ErrPriceTooLarge
		}
	}
	return nil
}

// Matches reports whether the line has the given identity.
func (l CartLine) Matches(productID, size string) bool {
	return l.ProductID == productID && l.Size == size
}

// FindLine returns the index of the line identified by (productID, size), or -1.
func FindLine(lines []CartLine, productID, size string) int {
	for i := range lines {
		if lines[i].Matches(productID, size) {
			return i
		}
	}
	return -1
}
