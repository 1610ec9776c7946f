package domain

import "math"

// MinQuantity is the smallest quantity a line may hold.
const MinQuantity = 1

// MaxLineQuantity bounds a single add request regardless of configuration.
const MaxLineQuantity = 10000

// AddQuantity returns a+b, saturating at the int bounds instead of wrapping.
func AddQuantity(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	if b < 0 && a < math.MinInt-b {
		return math.MinInt
	}
	return a + b
}

// ApplyDelta returns quantity+delta clamped to at least MinQuantity. When
// enforceStock is set the result is also capped at available, unless that would
// drop it below MinQuantity.
func ApplyDelta(quantity, delta, available int, enforceStock bool) int {
	q := AddQuantity(quantity, delta)
	if enforceStock && q > available {
		q = available
	}
	if q < MinQuantity {
		q = MinQuantity
	}
	return q
}

// CanIncrement reports whether the display should offer to raise the quantity.
func CanIncrement(line CartLine) bool {
	return line.Quantity < line.Product.AvailableStock()
}

// CanDecrement reports whether the display should offer to lower the quantity.
func CanDecrement(line CartLine) bool {
	return line.Quantity > MinQuantity
}

// LowStockThreshold is the largest available stock reported as low.
const LowStockThreshold = 5

// LowStock reports whether only a handful of units remain.
func LowStock(p Product) bool {
	avail := p.AvailableStock()
	return avail > 0 && avail <= LowStockThreshold
}
