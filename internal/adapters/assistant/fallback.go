package assistant

import (
	"context"

	"github.com/rs/zerolog"

	"gruz-board/internal/domain"
)

// Fallback пробует основного ассистента и при ошибке переключается на
// запасного. Ошибка основного только логируется.
type Fallback struct {
	primary  domain.Assistant
	fallback domain.Assistant
	log      zerolog.Logger
}

// WithFallback оборачивает основного ассистента запасным.
func WithFallback(primary, fallback domain.Assistant, logger zerolog.Logger) *Fallback {
	return &Fallback{primary: primary, fallback: fallback, log: logger}
}

// SuggestCities подсказки городов.
func (f *Fallback) SuggestCities(ctx context.Context, partial string) ([]string, error) {
	cities, err := f.primary.SuggestCities(ctx, partial)
	if err == nil {
		return cities, nil
	}
	f.log.Warn().Err(err).Msg("assistant: основной недоступен, переключаемся на запасного")
	return f.fallback.SuggestCities(ctx, partial)
}

// AnalyzeRoute справка по маршруту.
func (f *Fallback) AnalyzeRoute(ctx context.Context, q domain.RouteQuery) (domain.RouteAdvice, error) {
	advice, err := f.primary.AnalyzeRoute(ctx, q)
	if err == nil {
		return advice, nil
	}
	f.log.Warn().Err(err).Msg("assistant: основной недоступен, переключаемся на запасного")
	return f.fallback.AnalyzeRoute(ctx, q)
}
