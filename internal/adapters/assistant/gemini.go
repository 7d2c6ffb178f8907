// Package assistant реализует подсказки для форм: автодополнение
// городов и разбор маршрута. Основная реализация ходит в Gemini,
// запасная работает по словарю и не требует сети.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gruz-board/internal/domain"
	"gruz-board/internal/infra/gemini"
)

// Gemini ассистент поверх Gemini API.
type Gemini struct {
	client *gemini.Client
	model  string
}

// NewGemini создаёт ассистента.
func NewGemini(client *gemini.Client, model string) *Gemini {
	return &Gemini{client: client, model: model}
}

// SuggestCities дополняет частично введённое название города.
func (g *Gemini) SuggestCities(ctx context.Context, partial string) ([]string, error) {
	partial = strings.TrimSpace(partial)
	if len([]rune(partial)) < 2 {
		return nil, nil
	}
	prompt := fmt.Sprintf(
		"Подскажи до 5 городов Узбекистана и соседних стран, начинающихся с %q. "+
			"Ответь только JSON-массивом строк, без пояснений.", partial)
	resp, err := g.client.GenerateContent(ctx, g.model, gemini.GenerateContentRequest{
		Contents: []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: prompt}}}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMIMEType: gemini.ResponseMIMETypeJSON,
			Temperature:      0.2,
		},
	})
	if err != nil {
		return nil, errors.Join(domain.ErrAIUnavailable, err)
	}
	var cities []string
	if err := json.Unmarshal([]byte(resp.Text()), &cities); err != nil {
		return nil, errors.Join(domain.ErrAIUnavailable, fmt.Errorf("decode cities: %w", err))
	}
	if len(cities) > 5 {
		cities = cities[:5]
	}
	return cities, nil
}

// AnalyzeRoute даёт краткую справку по маршруту с источниками из
// поисковой выдачи.
func (g *Gemini) AnalyzeRoute(ctx context.Context, q domain.RouteQuery) (domain.RouteAdvice, error) {
	prompt := fmt.Sprintf(
		"Дай короткую справку для перевозчика по маршруту %s - %s: расстояние, "+
			"примерное время в пути, особенности дороги. Вид заявки: %s. %s",
		q.From, q.To, q.Kind, q.Details)
	resp, err := g.client.GenerateContent(ctx, g.model, gemini.GenerateContentRequest{
		Contents: []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: prompt}}}},
		Tools:    []gemini.Tool{{GoogleSearch: &struct{}{}}},
	})
	if err != nil {
		return domain.RouteAdvice{}, errors.Join(domain.ErrAIUnavailable, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return domain.RouteAdvice{}, domain.ErrAIUnavailable
	}
	advice := domain.RouteAdvice{Text: text}
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
			if chunk.Web != nil && chunk.Web.URI != "" {
				advice.Citations = append(advice.Citations, domain.Citation{
					Title: chunk.Web.Title,
					URI:   chunk.Web.URI,
				})
			}
		}
	}
	return advice, nil
}
