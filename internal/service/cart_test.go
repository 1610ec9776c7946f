package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/counter"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// --- Mocks ---

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, sessionID string) ([]domain.CartLine, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CartLine), args.Error(1)
}

func (m *mockCartRepository) Save(ctx context.Context, sessionID string, lines []domain.CartLine) error {
	args := m.Called(ctx, sessionID, lines)
	return args.Error(0)
}

func (m *mockCartRepository) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

type mockCounter struct {
	mock.Mock
}

func (m *mockCounter) Report(ctx context.Context, sessionID string, count int) (counter.Update, error) {
	args := m.Called(ctx, sessionID, count)
	return args.Get(0).(counter.Update), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishCartUpdated(ctx context.Context, sessionID, operation string, lines []domain.CartLine, totals domain.Totals) error {
	args := m.Called(ctx, sessionID, operation, lines, totals)
	return args.Error(0)
}

func (m *mockPublisher) PublishCountChanged(ctx context.Context, sessionID string, count, previous int) error {
	args := m.Called(ctx, sessionID, count, previous)
	return args.Error(0)
}

// --- Test Helpers ---

const session = "sess-1"

type fixture struct {
	repo    *mockCartRepository
	counter *mockCounter
	events  *mockPublisher
	svc     *CartService
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		repo:    new(mockCartRepository),
		counter: new(mockCounter),
		events:  new(mockPublisher),
	}
	f.svc = NewCartService(f.repo, f.counter, f.events, opts, newTestLogger())
	return f
}

// quiet accepts any count report and event without asserting on them.
func (f *fixture) quiet() {
	f.counter.On("Report", mock.Anything, session, mock.Anything).Return(counter.Update{}, nil)
	f.events.On("PublishCartUpdated", mock.Anything, session, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// shirt is the two-unit line from the storefront's reference cart.
func shirt() domain.CartLine {
	unit := dec(500)
	return domain.CartLine{
		ProductID: "1",
		Size:      "M",
		Quantity:  2,
		Product: domain.Product{
			Name:          "Linen Shirt",
			StockQuantity: 10,
			Currency:      "INR",
			UnitPrice:     &unit,
			PriceList:     []domain.PriceEntry{{Currency: "INR", Size: "M", PriceAmount: dec(450)}},
			CountryPrice:  &domain.CountryPrice{PriceAmount: dec(99)},
		},
	}
}

func tee(qty, stock int) domain.CartLine {
	unit := dec(300)
	return domain.CartLine{
		ProductID: "2",
		Size:      "S",
		Quantity:  qty,
		Product:   domain.Product{Name: "Tee", Currency: "INR", StockQuantity: stock, UnitPrice: &unit},
	}
}

func savedLines(f *fixture) []domain.CartLine {
	for _, c := range f.repo.Calls {
		if c.Method == "Save" {
			return c.Arguments.Get(2).([]domain.CartLine)
		}
	}
	return nil
}

// --- Load / View ---

func TestLoad_MissingDocumentIsEmpty(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return(nil, apperrors.NotFound("cart", session))
	f.counter.On("Report", mock.Anything, session, 0).Return(counter.Update{Count: 0, Initial: true}, nil)
	f.events.On("PublishCountChanged", mock.Anything, session, 0, 0).Return(nil)

	lines, err := f.svc.Load(context.Background(), session)
	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
	f.counter.AssertExpectations(t)
}

func TestLoad_CorruptDocumentDegradesToEmpty(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return(nil, apperrors.Corrupt("unmarshal cart", errors.New("unexpected end of JSON input")))
	f.counter.On("Report", mock.Anything, session, 0).Return(counter.Update{}, nil)

	lines, err := f.svc.Load(context.Background(), session)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestLoad_StorageError(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return(nil, errors.New("dial tcp: connection refused"))

	_, err := f.svc.Load(context.Background(), session)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load cart")
	f.counter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoad_SanitizesLines(t *testing.T) {
	f := newFixture(DefaultOptions())
	broken := tee(0, 5)
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{{Quantity: 3}, broken}, nil)
	f.counter.On("Report", mock.Anything, session, 1).Return(counter.Update{}, nil)

	lines, err := f.svc.Load(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestView_ReferenceCart(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{shirt()}, nil)
	f.counter.On("Report", mock.Anything, session, 1).Return(counter.Update{Count: 1, Previous: 1}, nil)

	view, err := f.svc.View(context.Background(), session)
	require.NoError(t, err)

	assert.True(t, dec(900).Equal(view.Totals.SubTotal))
	assert.True(t, dec(99).Equal(view.Totals.Shipping))
	assert.True(t, view.Totals.Tax.IsZero())
	assert.True(t, dec(999).Equal(view.Totals.GrandTotal))
	assert.Equal(t, "INR", view.Totals.Currency)
	assert.Equal(t, 1, view.Count)
	assert.False(t, view.FreeShipping)

	require.Len(t, view.Lines, 1)
	row := view.Lines[0]
	assert.True(t, dec(450).Equal(row.UnitPrice))
	assert.True(t, dec(900).Equal(row.LineTotal))
	assert.Equal(t, 10, row.AvailableStock)
	assert.True(t, row.CanIncrement)
	assert.True(t, row.CanDecrement)
	assert.False(t, row.LowStock)
	assert.Equal(t, domain.PlaceholderImage, row.ImageURL)

	f.events.AssertNotCalled(t, "PublishCountChanged", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestView_LowStockAndIncrementPolicy(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{tee(3, 3)}, nil)
	f.quiet()

	view, err := f.svc.View(context.Background(), session)
	require.NoError(t, err)

	row := view.Lines[0]
	assert.False(t, row.CanIncrement)
	assert.True(t, row.LowStock)
	assert.True(t, view.FreeShipping)
}

func TestTotals_EmptyCart(t *testing.T) {
	f := newFixture(Options{DefaultCurrency: "AED"})
	f.repo.On("Get", mock.Anything, session).Return(nil, apperrors.NotFound("cart", session))

	totals, err := f.svc.Totals(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, totals.GrandTotal.IsZero())
	assert.Equal(t, "AED", totals.Currency)
}

// --- UpdateQuantity ---

func TestUpdateQuantity_ClampsAtOne(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{tee(3, 10)}, nil)
	f.repo.On("Save", mock.Anything, session, mock.Anything).Return(nil)
	f.quiet()

	view, err := f.svc.UpdateQuantity(context.Background(), session, "2", "S", -100)
	require.NoError(t, err)

	assert.Equal(t, 1, view.Lines[0].Quantity)
	assert.Equal(t, 1, savedLines(f)[0].Quantity)
	f.events.AssertCalled(t, "PublishCartUpdated", mock.Anything, session, event.OperationUpdateQuantity, mock.Anything, mock.Anything)
}

func TestUpdateQuantity_StockPolicy(t *testing.T) {
	tests := []struct {
		name    string
		enforce bool
		want    int
	}{
		{"display policy only", false, 6},
		{"enforced in mutation", true, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.EnforceStockLimit = tt.enforce
			f := newFixture(opts)
			f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{tee(4, 4)}, nil)
			f.repo.On("Save", mock.Anything, session, mock.Anything).Return(nil)
			f.quiet()

			view, err := f.svc.UpdateQuantity(context.Background(), session, "2", "S", 2)
			require.NoError(t, err)
			assert.Equal(t, tt.want, view.Lines[0].Quantity)
			assert.False(t, view.Lines[0].CanIncrement)
		})
	}
}

func TestUpdateQuantity_MissingLineIsNoop(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{shirt()}, nil)
	f.counter.On("Report", mock.Anything, session, 1).Return(counter.Update{Count: 1, Previous: 1}, nil)

	view, err := f.svc.UpdateQuantity(context.Background(), session, "1", "XL", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, view.Lines[0].Quantity)
	f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	f.counter.AssertExpectations(t)
}

func TestUpdateQuantity_SaveError(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{shirt()}, nil)
	f.repo.On("Save", mock.Anything, session, mock.Anything).Return(errors.New("READONLY"))

	_, err := f.svc.UpdateQuantity(context.Background(), session, "1", "M", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save cart")
	f.counter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything, mock.Anything)
}

// --- RemoveItem / MoveToWishlist ---

func TestRemoveItem_LastLineZeroesTotals(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{shirt()}, nil)
	f.repo.On("Save", mock.Anything, session, []domain.CartLine{}).Return(nil)
	f.counter.On("Report", mock.Anything, session, 0).Return(counter.Update{Count: 0, Previous: 1}, nil)
	f.events.On("PublishCartUpdated", mock.Anything, session, event.OperationRemove, mock.Anything, mock.Anything).Return(nil)
	f.events.On("PublishCountChanged", mock.Anything, session, 0, 1).Return(nil)

	view, err := f.svc.RemoveItem(context.Background(), session, "1", "M")
	require.NoError(t, err)

	assert.Empty(t, view.Lines)
	assert.True(t, view.Totals.SubTotal.IsZero())
	assert.True(t, view.Totals.Shipping.IsZero())
	assert.True(t, view.Totals.GrandTotal.IsZero())
	assert.Zero(t, view.Count)
	f.repo.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestRemoveItem_KeepsOtherLinesInOrder(t *testing.T) {
	f := newFixture(DefaultOptions())
	third := tee(1, 5)
	third.ProductID = "3"
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{shirt(), tee(1, 5), third}, nil)
	f.repo.On("Save", mock.Anything, session, mock.Anything).Return(nil)
	f.quiet()

	view, err := f.svc.RemoveItem(context.Background(), session, "2", "S")
	require.NoError(t, err)

	saved := savedLines(f)
	require.Len(t, saved, 2)
	assert.Equal(t, "1", saved[0].ProductID)
	assert.Equal(t, "3", saved[1].ProductID)
	assert.Equal(t, 2, view.Count)
}

func TestRemoveItem_MissingLineIsNoop(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{shirt()}, nil)
	f.counter.On("Report", mock.Anything, session, 1).Return(counter.Update{Count: 1, Previous: 1}, nil)

	view, err := f.svc.RemoveItem(context.Background(), session, "404", "M")
	require.NoError(t, err)

	assert.Len(t, view.Lines, 1)
	assert.Equal(t, 1, view.Count)
	f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "PublishCartUpdated", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMoveToWishlist_RemovesWithoutPersistingWishlist(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{shirt(), tee(1, 5)}, nil)
	f.repo.On("Save", mock.Anything, session, mock.Anything).Return(nil)
	f.counter.On("Report", mock.Anything, session, 1).Return(counter.Update{}, nil)
	f.events.On("PublishCartUpdated", mock.Anything, session, event.OperationMoveToWishlist, mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.MoveToWishlist(context.Background(), session, "1", "M")
	require.NoError(t, err)

	assert.False(t, res.WishlistPersisted)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "2", res.Lines[0].ProductID)
	f.events.AssertExpectations(t)
}

// --- AddItem ---

func TestAddItem_AppendsAndMerges(t *testing.T) {
	f := newFixture(DefaultOptions())
	existing := shirt()
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{existing}, nil)
	f.repo.On("Save", mock.Anything, session, mock.Anything).Return(nil)
	f.quiet()

	view, err := f.svc.AddItem(context.Background(), session, AddItemInput{
		ProductID: "1", Size: "M", Quantity: 3, Product: existing.Product,
	})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 5, view.Lines[0].Quantity)

	f2 := newFixture(DefaultOptions())
	f2.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{existing}, nil)
	f2.repo.On("Save", mock.Anything, session, mock.Anything).Return(nil)
	f2.quiet()

	added := tee(2, 10)
	view, err = f2.svc.AddItem(context.Background(), session, AddItemInput{
		ProductID: added.ProductID, Size: added.Size, Quantity: 2, Product: added.Product,
	})
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, "2", view.Lines[1].ProductID)
	assert.Equal(t, 2, view.Count)
}

func TestAddItem_Limits(t *testing.T) {
	t.Run("line limit", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxLines = 1
		f := newFixture(opts)
		f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{shirt()}, nil)

		added := tee(1, 10)
		_, err := f.svc.AddItem(context.Background(), session, AddItemInput{
			ProductID: added.ProductID, Size: added.Size, Quantity: 1, Product: added.Product,
		})
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("out of stock when enforced", func(t *testing.T) {
		opts := DefaultOptions()
		opts.EnforceStockLimit = true
		f := newFixture(opts)
		f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{}, nil)

		added := tee(1, 0)
		_, err := f.svc.AddItem(context.Background(), session, AddItemInput{
			ProductID: added.ProductID, Size: added.Size, Quantity: 1, Product: added.Product,
		})
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("quantity above cap", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxQuantity = 5
		f := newFixture(opts)

		added := tee(1, 100)
		_, err := f.svc.AddItem(context.Background(), session, AddItemInput{
			ProductID: added.ProductID, Size: added.Size, Quantity: 9, Product: added.Product,
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Contains(t, err.Error(), "quantity must not exceed 5")
		f.repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("quantity at cap", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxQuantity = 5
		f := newFixture(opts)
		f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{}, nil)
		f.repo.On("Save", mock.Anything, session, mock.Anything).Return(nil)
		f.quiet()

		added := tee(1, 100)
		view, err := f.svc.AddItem(context.Background(), session, AddItemInput{
			ProductID: added.ProductID, Size: added.Size, Quantity: 5, Product: added.Product,
		})
		require.NoError(t, err)
		assert.Equal(t, 5, view.Lines[0].Quantity)
	})

	t.Run("combined quantity above cap", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxQuantity = 5
		f := newFixture(opts)
		f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{tee(3, 100)}, nil)

		added := tee(1, 100)
		_, err := f.svc.AddItem(context.Background(), session, AddItemInput{
			ProductID: added.ProductID, Size: added.Size, Quantity: 3, Product: added.Product,
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Contains(t, err.Error(), "combined quantity must not exceed 5")
		f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("merge never wraps negative", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxQuantity = 0
		f := newFixture(opts)
		f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{tee(5, 100)}, nil)

		added := tee(1, 100)
		_, err := f.svc.AddItem(context.Background(), session, AddItemInput{
			ProductID: added.ProductID, Size: added.Size, Quantity: math.MaxInt, Product: added.Product,
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("merge up to the hard ceiling without a configured cap", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxQuantity = 0
		f := newFixture(opts)
		f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{tee(5, 100)}, nil)

		added := tee(1, 100)
		_, err := f.svc.AddItem(context.Background(), session, AddItemInput{
			ProductID: added.ProductID, Size: added.Size, Quantity: domain.MaxLineQuantity - 4, Product: added.Product,
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("zero quantity", func(t *testing.T) {
		f := newFixture(DefaultOptions())
		_, err := f.svc.AddItem(context.Background(), session, AddItemInput{ProductID: "1", Size: "M"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestAddItem_RejectsInvalidSnapshot(t *testing.T) {
	negative := dec(-500)
	tests := []struct {
		name   string
		mutate func(p *domain.Product)
		msg    string
	}{
		{"negative unit price", func(p *domain.Product) { p.UnitPrice = &negative }, "price must not be negative"},
		{"negative price list amount", func(p *domain.Product) {
			p.PriceList = []domain.PriceEntry{{Currency: "INR", Size: "S", PriceAmount: negative}}
		}, "price must not be negative"},
		{"negative country price", func(p *domain.Product) {
			p.CountryPrice = &domain.CountryPrice{PriceAmount: negative}
		}, "price must not be negative"},
		{"negative stock", func(p *domain.Product) { p.StockQuantity = -3 }, "stock must not be negative"},
		{"negative reserved stock", func(p *domain.Product) { p.ReservedQuantity = -3 }, "stock must not be negative"},
		{"price above ceiling", func(p *domain.Product) {
			huge := domain.MaxAmount.Add(dec(1))
			p.UnitPrice = &huge
		}, "price exceeds maximum"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(DefaultOptions())

			added := tee(1, 10)
			tt.mutate(&added.Product)
			_, err := f.svc.AddItem(context.Background(), session, AddItemInput{
				ProductID: added.ProductID, Size: added.Size, Quantity: 2, Product: added.Product,
			})
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.msg)
			f.repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
			f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// --- Duplicate lines in a stored document ---

func duplicatedShirts() []domain.CartLine {
	first := shirt()
	second := shirt()
	second.Quantity = 3
	second.Note = "gift"
	return []domain.CartLine{first, tee(1, 10), second}
}

func TestLoad_MergesDuplicateLines(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return(duplicatedShirts(), nil)
	f.counter.On("Report", mock.Anything, session, 2).Return(counter.Update{}, nil)

	lines, err := f.svc.Load(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "1", lines[0].ProductID)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Empty(t, lines[0].Note)
	assert.Equal(t, "2", lines[1].ProductID)
}

func TestRemoveItem_RemovesEveryDuplicate(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return(duplicatedShirts(), nil)
	f.repo.On("Save", mock.Anything, session, mock.Anything).Return(nil)
	f.quiet()

	view, err := f.svc.RemoveItem(context.Background(), session, "1", "M")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "2", view.Lines[0].ProductID)

	saved := savedLines(f)
	require.Len(t, saved, 1)
	assert.Equal(t, -1, domain.FindLine(saved, "1", "M"))
}

func TestUpdateQuantity_AppliesToMergedDuplicates(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return(duplicatedShirts(), nil)
	f.repo.On("Save", mock.Anything, session, mock.Anything).Return(nil)
	f.quiet()

	view, err := f.svc.UpdateQuantity(context.Background(), session, "1", "M", 1)
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, 6, view.Lines[0].Quantity)
	assert.Len(t, savedLines(f), 2)
}

func TestUpdateQuantity_LargeDeltaDoesNotWrap(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{tee(5, 10)}, nil)
	f.repo.On("Save", mock.Anything, session, mock.Anything).Return(nil)
	f.quiet()

	view, err := f.svc.UpdateQuantity(context.Background(), session, "2", "S", math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, view.Lines[0].Quantity)
}

// --- Clear ---

func TestClear(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Delete", mock.Anything, session).Return(nil)
	f.counter.On("Report", mock.Anything, session, 0).Return(counter.Update{Count: 0, Previous: 2}, nil)
	f.events.On("PublishCartUpdated", mock.Anything, session, event.OperationClear, mock.Anything, mock.Anything).Return(nil)
	f.events.On("PublishCountChanged", mock.Anything, session, 0, 2).Return(nil)

	view, err := f.svc.Clear(context.Background(), session)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Equal(t, "INR", view.Totals.Currency)
	f.events.AssertExpectations(t)
}

// --- Side effects ---

func TestSideEffectFailuresDoNotFailMutation(t *testing.T) {
	f := newFixture(DefaultOptions())
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{shirt()}, nil)
	f.repo.On("Save", mock.Anything, session, mock.Anything).Return(nil)
	f.counter.On("Report", mock.Anything, session, 1).Return(counter.Update{}, errors.New("redis down"))
	f.events.On("PublishCartUpdated", mock.Anything, session, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("kafka down"))

	view, err := f.svc.UpdateQuantity(context.Background(), session, "1", "M", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Lines[0].Quantity)
}

func TestNilPublisher(t *testing.T) {
	repo := new(mockCartRepository)
	reporter := new(mockCounter)
	svc := NewCartService(repo, reporter, nil, DefaultOptions(), newTestLogger())

	repo.On("Get", mock.Anything, session).Return([]domain.CartLine{shirt()}, nil)
	repo.On("Save", mock.Anything, session, mock.Anything).Return(nil)
	reporter.On("Report", mock.Anything, session, 0).Return(counter.Update{Count: 0, Previous: 1}, nil)

	_, err := svc.RemoveItem(context.Background(), session, "1", "M")
	require.NoError(t, err)
}

func TestMixedCurrencyIsFlagged(t *testing.T) {
	f := newFixture(DefaultOptions())
	other := tee(1, 5)
	other.Product.Currency = "AED"
	f.repo.On("Get", mock.Anything, session).Return([]domain.CartLine{shirt(), other}, nil)

	totals, err := f.svc.Totals(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, totals.MixedCurrency)
	assert.Equal(t, "INR", totals.Currency)
}
