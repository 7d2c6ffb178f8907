package assistant

import (
	"context"
	"fmt"
	"strings"

	"gruz-board/internal/domain"
)

// defaultCities словарь для офлайн-подсказок. Покрывает основные города
// региона, которыми чаще всего заполняют маршрут.
var defaultCities = []string{
	"Ташкент", "Самарканд", "Бухара", "Андижан", "Наманган", "Фергана",
	"Нукус", "Карши", "Термез", "Ургенч", "Джизак", "Навои", "Коканд",
	"Алматы", "Шымкент", "Бишкек", "Ош", "Худжанд", "Душанбе", "Москва",
}

// Simple ассистент без внешних зависимостей.
type Simple struct {
	cities []string
}

// NewSimple создаёт офлайн-ассистента. Пустой список городов заменяется
// словарём по умолчанию.
func NewSimple(cities []string) *Simple {
	if len(cities) == 0 {
		cities = defaultCities
	}
	return &Simple{cities: cities}
}

// SuggestCities ищет по словарю без учёта регистра.
func (s *Simple) SuggestCities(_ context.Context, partial string) ([]string, error) {
	partial = strings.ToLower(strings.TrimSpace(partial))
	if len([]rune(partial)) < 2 {
		return nil, nil
	}
	var out []string
	for _, city := range s.cities {
		if strings.HasPrefix(strings.ToLower(city), partial) {
			out = append(out, city)
			if len(out) == 5 {
				break
			}
		}
	}
	return out, nil
}

// AnalyzeRoute отдаёт нейтральную справку без внешних данных.
func (s *Simple) AnalyzeRoute(_ context.Context, q domain.RouteQuery) (domain.RouteAdvice, error) {
	text := fmt.Sprintf(
		"Маршрут %s - %s. Уточните расстояние и время в пути у диспетчера, "+
			"автоматическая справка сейчас недоступна.", q.From, q.To)
	return domain.RouteAdvice{Text: text}, nil
}
