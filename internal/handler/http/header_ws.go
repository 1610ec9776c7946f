package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/utafrali/storefront/internal/counter"
	"github.com/utafrali/storefront/internal/search"
)

// Header websocket frame types.
const (
	frameCartCount     = "cart_count"
	frameSearch        = "search"
	frameSearchResults = "search_results"
	frameError         = "error"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsMaxMessage   = 4096
	wsSendBuffer   = 16
)

// CountSource is the badge count feed of a session.
type CountSource interface {
	Current(ctx context.Context, sessionID string) (int, bool, error)
	Subscribe(ctx context.Context, sessionID string) (<-chan counter.Update, error)
}

// inboundFrame is a message sent by the header.
type inboundFrame struct {
	Type        string `json:"type"`
	Query       string `json:"query"`
	Category    string `json:"category,omitempty"`
	SubCategory string `json:"subCategory,omitempty"`
	Country     string `json:"country,omitempty"`
}

// outboundFrame is a message pushed to the header.
type outboundFrame struct {
	Type    string          `json:"type"`
	Count   *counter.Update `json:"count,omitempty"`
	Results *search.Result  `json:"results,omitempty"`
	Message string          `json:"message,omitempty"`
}

// HeaderHandler serves the header websocket: the cart badge count and the
// debounced product search share one connection.
type HeaderHandler struct {
	counts   CountSource
	searcher *search.Searcher
	debounce time.Duration
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// closing ends every open connection.
	closing context.Context
	close   context.CancelFunc
}

// NewHeaderHandler creates the header websocket handler. allowedOrigins uses
// the CORS allowlist; "*" accepts any origin.
func NewHeaderHandler(counts CountSource, searcher *search.Searcher, debounce time.Duration, allowedOrigins []string, logger *slog.Logger) *HeaderHandler {
	h := &HeaderHandler{
		counts:   counts,
		searcher: searcher,
		debounce: debounce,
		logger:   logger,
	}
	h.closing, h.close = context.WithCancel(context.Background())
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// Close disconnects every open header websocket. http.Server.Shutdown does not
// track hijacked connections.
func (h *HeaderHandler) Close() {
	h.close()
}

// ServeWS handles GET /api/v1/header/ws
func (h *HeaderHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("session_id", sid),
			slog.String("error", err.Error()),
		)
		return
	}

	// The request context ends when the handler returns; the connection gets
	// its own, carrying the request's values.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	stop := context.AfterFunc(h.closing, cancel)
	defer stop()

	send := make(chan outboundFrame, wsSendBuffer)
	enqueue := func(f outboundFrame) {
		select {
		case send <- f:
		case <-ctx.Done():
		}
	}

	updates, err := h.counts.Subscribe(ctx, sid)
	if err != nil {
		h.logger.ErrorContext(ctx, "cart count subscription failed",
			slog.String("session_id", sid),
			slog.String("error", err.Error()),
		)
		updates = nil
	}

	debouncer := search.NewDebouncer(h.searcher, h.debounce, func(res search.Result) {
		enqueue(outboundFrame{Type: frameSearchResults, Results: &res})
	}, h.logger)
	defer debouncer.Stop()

	// The snapshot goes out before the writer starts so that no update already
	// buffered on the subscription can overtake it.
	if count, ok, err := h.counts.Current(ctx, sid); err == nil {
		initial := counter.Update{Count: count, Initial: !ok}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(outboundFrame{Type: frameCartCount, Count: &initial}); err != nil {
			h.logger.DebugContext(ctx, "header websocket write failed", slog.String("error", err.Error()))
			_ = conn.Close()
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(ctx, conn, send, updates)
		cancel()
		// Unblocks readPump when the writer fails first.
		_ = conn.Close()
	}()

	h.readPump(ctx, conn, debouncer, enqueue)
	cancel()
	<-done

	h.logger.DebugContext(ctx, "header websocket closed", slog.String("session_id", sid))
}

// readPump routes inbound frames until the client goes away.
func (h *HeaderHandler) readPump(ctx context.Context, conn *websocket.Conn, debouncer *search.Debouncer, enqueue func(outboundFrame)) {
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.DebugContext(ctx, "header websocket read failed", slog.String("error", err.Error()))
			}
			return
		}

		var in inboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			enqueue(outboundFrame{Type: frameError, Message: "malformed frame"})
			continue
		}

		switch in.Type {
		case frameSearch:
			debouncer.Submit(ctx, search.Query{
				Query:       in.Query,
				Category:    in.Category,
				SubCategory: in.SubCategory,
				Country:     in.Country,
			})
		default:
			enqueue(outboundFrame{Type: frameError, Message: "unknown frame type " + in.Type})
		}
	}
}

// writePump is the only writer of conn.
func (h *HeaderHandler) writePump(ctx context.Context, conn *websocket.Conn, send <-chan outboundFrame, updates <-chan counter.Update) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		var frame outboundFrame
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			frame = outboundFrame{Type: frameCartCount, Count: &u}
		case frame = <-send:
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(frame); err != nil {
			h.logger.DebugContext(ctx, "header websocket write failed", slog.String("error", err.Error()))
			return
		}
	}
}
