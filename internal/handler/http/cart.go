package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/coupon"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	coupons *coupon.Client
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, coupons *coupon.Client, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		coupons: coupons,
		logger:  logger,
	}
}

// --- Request DTOs ---

// UpdateQuantityRequest is the JSON request body for changing a line quantity.
type UpdateQuantityRequest struct {
	Delta int `json:"delta" validate:"gte=-1000,lte=1000"`
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), sessionID(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, view)
}

// GetTotals handles GET /api/v1/cart/totals
func (h *CartHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.Totals(r.Context(), sessionID(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, totals)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Clear(r.Context(), sessionID(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, view)
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req service.AddItemInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	view, err := h.service.AddItem(r.Context(), sessionID(r), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: view})
}

// UpdateQuantity handles PATCH /api/v1/cart/items/{productId}/{size}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, size, err := lineKey(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	view, err := h.service.UpdateQuantity(r.Context(), sessionID(r), productID, size, req.Delta)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, view)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}/{size}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, size, err := lineKey(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	view, err := h.service.RemoveItem(r.Context(), sessionID(r), productID, size)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, view)
}

// MoveToWishlist handles POST /api/v1/cart/items/{productId}/{size}/wishlist
func (h *CartHandler) MoveToWishlist(w http.ResponseWriter, r *http.Request) {
	productID, size, err := lineKey(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.service.MoveToWishlist(r.Context(), sessionID(r), productID, size)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, res)
}

// GetCoupons handles GET /api/v1/cart/coupons. Coupon failures are reported
// in the payload, never as an error status.
func (h *CartHandler) GetCoupons(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.Totals(r.Context(), sessionID(r))
	if err != nil {
		h.logger.WarnContext(r.Context(), "cannot compute order amount for coupons",
			slog.String("error", err.Error()),
		)
		httputil.WriteData(w, coupon.Unavailable())
		return
	}

	httputil.WriteData(w, h.coupons.ActiveForMe(r.Context(), totals.GrandTotal, r.Header.Get("Authorization")))
}

// --- Helpers ---

func sessionID(r *http.Request) string {
	return logger.SessionIDFromContext(r.Context())
}

// lineKey reads the line identity from the route.
func lineKey(r *http.Request) (productID, size string, err error) {
	productID, err = url.PathUnescape(chi.URLParam(r, "productId"))
	if err != nil || productID == "" {
		return "", "", apperrors.InvalidInput("invalid product id")
	}
	size, err = url.PathUnescape(chi.URLParam(r, "size"))
	if err != nil || size == "" {
		return "", "", apperrors.InvalidInput("invalid size")
	}
	return productID, size, nil
}
