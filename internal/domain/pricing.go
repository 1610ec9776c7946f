package domain

import "github.com/shopspring/decimal"

// DefaultCurrency is reported for empty carts and lines without a currency.
const DefaultCurrency = "INR"

func init() {
	// Browsers persist amounts as JSON numbers; keep writing them back that way.
	decimal.MarshalJSONWithoutQuotes = true
}

// Totals is the aggregate of a cart. Tax is always zero.
type Totals struct {
	SubTotal      decimal.Decimal `json:"subTotal"`
	Shipping      decimal.Decimal `json:"shipping"`
	Tax           decimal.Decimal `json:"tax"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	Currency      string          `json:"currency"`
	MixedCurrency bool            `json:"mixedCurrency,omitempty"`
}

// ResolvePrice returns the unit price of a line and its currency.
//
// Candidates are price-list entries in the product's currency for the line's
// size. A candidate for the product's country wins; otherwise the first
// candidate in stored order is used. Without candidates the product's unit
// price applies, or zero when it has none.
func ResolvePrice(line CartLine) (decimal.Decimal, string) {
	p := line.Product

	var first *PriceEntry
	for i := range p.PriceList {
		e := &p.PriceList[i]
		if e.Currency != p.Currency || e.Size != line.Size {
			continue
		}
		if p.Country != "" && e.Country == p.Country {
			return e.PriceAmount, p.Currency
		}
		if first == nil {
			first = e
		}
	}
	if first != nil {
		return first.PriceAmount, p.Currency
	}
	if p.UnitPrice != nil {
		return *p.UnitPrice, p.Currency
	}
	return decimal.Zero, p.Currency
}

// LineTotal is the resolved unit price times the line quantity.
func LineTotal(line CartLine) decimal.Decimal {
	price, _ := ResolvePrice(line)
	return price.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// Shipping sums the flat country price of every line that carries one,
// independent of quantity.
func Shipping(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.Product.CountryPrice != nil {
			total = total.Add(l.Product.CountryPrice.PriceAmount)
		}
	}
	return total
}

// CartCurrency is the first line's product currency, or fallback.
func CartCurrency(lines []CartLine, fallback string) string {
	if len(lines) > 0 && lines[0].Product.Currency != "" {
		return lines[0].Product.Currency
	}
	if fallback == "" {
		return DefaultCurrency
	}
	return fallback
}

// ComputeTotals aggregates lines. Amounts in other currencies than the cart
// currency are summed as-is and flagged with MixedCurrency.
func ComputeTotals(lines []CartLine, fallbackCurrency string) Totals {
	t := Totals{
		SubTotal: decimal.Zero,
		Shipping: decimal.Zero,
		Tax:      decimal.Zero,
		Currency: CartCurrency(lines, fallbackCurrency),
	}

	for _, l := range lines {
		t.SubTotal = t.SubTotal.Add(LineTotal(l))
		if c := l.Product.Currency; c != "" && c != t.Currency {
			t.MixedCurrency = true
		}
	}
	t.Shipping = Shipping(lines)
	t.GrandTotal = t.SubTotal.Add(t.Shipping)
	return t
}
