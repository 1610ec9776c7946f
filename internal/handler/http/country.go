package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/geo"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/validator"
)

// CountryHandler serves the market selector.
type CountryHandler struct {
	service *geo.Service
	logger  *slog.Logger
}

// NewCountryHandler creates a new country HTTP handler.
func NewCountryHandler(svc *geo.Service, logger *slog.Logger) *CountryHandler {
	return &CountryHandler{service: svc, logger: logger}
}

// SelectCountryRequest is the JSON request body for confirming a country.
type SelectCountryRequest struct {
	Code string `json:"code" validate:"required,len=2"`
}

// ListCountries handles GET /api/v1/countries
func (h *CountryHandler) ListCountries(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, domain.SupportedCountries)
}

// GetCountry handles GET /api/v1/country
func (h *CountryHandler) GetCountry(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, h.service.Resolve(r.Context(), sessionID(r), middleware.ClientIP(r)))
}

// SelectCountry handles PUT /api/v1/country
func (h *CountryHandler) SelectCountry(w http.ResponseWriter, r *http.Request) {
	var req SelectCountryRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	sel, err := h.service.Select(r.Context(), sessionID(r), req.Code)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, sel)
}
