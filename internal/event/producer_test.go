package event

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func newTestProducer(w *recordingWriter) *Producer {
	l := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	return NewProducer(pkgkafka.NewProducerWithWriter(w, []string{"localhost:9092"}, l), l)
}

func TestPublishCartUpdated(t *testing.T) {
	w := &recordingWriter{}
	p := newTestProducer(w)

	lines := []domain.CartLine{{
		ProductID: "p1",
		Size:      "M",
		Quantity:  2,
		Product: domain.Product{
			Name:     "Linen Shirt",
			Currency: "INR",
			PriceList: []domain.PriceEntry{
				{Currency: "INR", Size: "M", PriceAmount: decimal.NewFromInt(450)},
			},
		},
	}}
	totals := domain.ComputeTotals(lines, "INR")

	ctx := logger.WithCorrelationID(context.Background(), "corr-9")
	require.NoError(t, p.PublishCartUpdated(ctx, "sess-1", OperationUpdateQuantity, lines, totals))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, TopicCartUpdated, msg.Topic)
	assert.Equal(t, "sess-1", string(msg.Key))

	ev, err := pkgkafka.DecodeEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, EventCartUpdated, ev.EventType)
	assert.Equal(t, AggregateTypeCart, ev.AggregateType)
	assert.Equal(t, "corr-9", ev.CorrelationID)

	var data CartUpdatedData
	require.NoError(t, ev.DecodeData(&data))
	assert.Equal(t, OperationUpdateQuantity, data.Operation)
	assert.Equal(t, 1, data.ItemCount)
	require.Len(t, data.Items, 1)
	assert.True(t, decimal.NewFromInt(450).Equal(data.Items[0].UnitPrice))
	assert.True(t, decimal.NewFromInt(900).Equal(data.GrandTotal))
	assert.Equal(t, "INR", data.Currency)
}

func TestPublishCountChanged(t *testing.T) {
	w := &recordingWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.PublishCountChanged(context.Background(), "sess-1", 3, 2))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, TopicCartCountChanged, w.msgs[0].Topic)

	ev, err := pkgkafka.DecodeEvent(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Empty(t, ev.CorrelationID)

	var data CountChangedData
	require.NoError(t, ev.DecodeData(&data))
	assert.Equal(t, CountChangedData{SessionID: "sess-1", Count: 3, Previous: 2}, data)
}

func TestPublish_WriterError(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := newTestProducer(w)

	err := p.PublishCountChanged(context.Background(), "sess-1", 1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish cart.count_changed event")
}
