package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CountryLocator resolves a client address to a country code.
type CountryLocator interface {
	Lookup(ctx context.Context, ip string) (string, error)
}

// Selection is the country state of a session. Confirmed is true only for a
// saved selection; Detected is a suggestion awaiting confirmation.
type Selection struct {
	Selected  *domain.Country `json:"selected,omitempty"`
	Detected  *domain.Country `json:"detected,omitempty"`
	Confirmed bool            `json:"confirmed"`
}

// Service combines the saved selection with IP detection.
type Service struct {
	repo    repository.CountryRepository
	locator CountryLocator
	logger  *slog.Logger
}

// NewService creates a country selection service.
func NewService(repo repository.CountryRepository, locator CountryLocator, logger *slog.Logger) *Service {
	return &Service{repo: repo, locator: locator, logger: logger}
}

// Resolve returns the saved selection when there is one, otherwise a detected
// suggestion for ip. Detection failures yield an unconfirmed, empty selection.
func (s *Service) Resolve(ctx context.Context, sessionID, ip string) Selection {
	code, err := s.repo.GetSelected(ctx, sessionID)
	switch {
	case err == nil:
		if c, ok := domain.LookupCountry(code); ok {
			return Selection{Selected: &c, Confirmed: true}
		}
		s.logger.WarnContext(ctx, "ignoring unsupported saved country",
			slog.String("session_id", sessionID),
			slog.String("country", code),
		)
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		s.logger.ErrorContext(ctx, "failed to read saved country",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	detected, err := s.locator.Lookup(ctx, ip)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrUnroutableAddress) {
			level = slog.LevelDebug
		}
		s.logger.Log(ctx, level, "country detection failed",
			slog.String("ip", ip),
			slog.String("error", err.Error()),
		)
		return Selection{}
	}

	c, ok := domain.LookupCountry(detected)
	if !ok {
		s.logger.InfoContext(ctx, "detected country is not served",
			slog.String("country", detected),
		)
		return Selection{}
	}
	return Selection{Detected: &c}
}

// Select confirms code for the session.
func (s *Service) Select(ctx context.Context, sessionID, code string) (Selection, error) {
	c, ok := domain.LookupCountry(code)
	if !ok {
		return Selection{}, apperrors.InvalidInput(fmt.Sprintf("country %q is not supported", code))
	}

	if err := s.repo.SaveSelected(ctx, sessionID, c.Code); err != nil {
		return Selection{}, fmt.Errorf("save selected country: %w", err)
	}

	s.logger.InfoContext(ctx, "country selected",
		slog.String("session_id", sessionID),
		slog.String("country", c.Code),
	)
	return Selection{Selected: &c, Confirmed: true}, nil
}
