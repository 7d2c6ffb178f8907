package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"gruz-board/internal/domain"
)

func TestSimpleSuggestCities(t *testing.T) {
	s := NewSimple(nil)

	got, err := s.SuggestCities(context.Background(), "та")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) == 0 || got[0] != "Ташкент" {
		t.Fatalf("ожидали Ташкент первым, получили %v", got)
	}

	if got, _ := s.SuggestCities(context.Background(), "т"); got != nil {
		t.Fatalf("короткий ввод не должен давать подсказок: %v", got)
	}
	if got, _ := s.SuggestCities(context.Background(), "zzz"); got != nil {
		t.Fatalf("неизвестный префикс должен давать пустой список: %v", got)
	}
}

func TestSimpleAnalyzeRoute(t *testing.T) {
	s := NewSimple(nil)
	advice, err := s.AnalyzeRoute(context.Background(), domain.RouteQuery{From: "А", To: "Б"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if advice.Text == "" || advice.Citations != nil {
		t.Fatalf("ожидали текст без источников: %+v", advice)
	}
}

type failingAssistant struct{}

func (failingAssistant) SuggestCities(context.Context, string) ([]string, error) {
	return nil, domain.ErrAIUnavailable
}

func (failingAssistant) AnalyzeRoute(context.Context, domain.RouteQuery) (domain.RouteAdvice, error) {
	return domain.RouteAdvice{}, domain.ErrAIUnavailable
}

func TestFallbackSwitches(t *testing.T) {
	f := WithFallback(failingAssistant{}, NewSimple(nil), zerolog.Nop())

	got, err := f.SuggestCities(context.Background(), "бу")
	if err != nil {
		t.Fatalf("запасной должен отработать: %v", err)
	}
	if len(got) == 0 || got[0] != "Бухара" {
		t.Fatalf("ожидали подсказку запасного, получили %v", got)
	}

	advice, err := f.AnalyzeRoute(context.Background(), domain.RouteQuery{From: "А", To: "Б"})
	if err != nil || advice.Text == "" {
		t.Fatalf("запасной разбор маршрута должен отработать: %v %+v", err, advice)
	}
	if errors.Is(err, domain.ErrAIUnavailable) {
		t.Fatalf("ошибка основного не должна протекать наружу")
	}
}
