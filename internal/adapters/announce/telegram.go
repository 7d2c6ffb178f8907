// Package announce публикует новые объявления в Telegram-канал. Тот же
// канал служит внешним действием гейта подписки.
package announce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gruz-board/internal/domain"
	"gruz-board/internal/infra/metrics"
)

// Telegram анонсер на Bot API.
type Telegram struct {
	bot     *tgbotapi.BotAPI
	channel string
}

// NewTelegram создаёт анонсера. channel задаётся как @username канала.
func NewTelegram(token, channel string) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if channel == "" {
		return nil, errors.New("telegram channel is empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	return &Telegram{bot: bot, channel: channel}, nil
}

// AnnounceListing отправляет объявление в канал.
func (t *Telegram) AnnounceListing(_ context.Context, l domain.Listing) error {
	msg := tgbotapi.NewMessageToChannel(t.channel, formatListing(l))
	start := time.Now()
	_, err := t.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram", "announce", t.channel, start, err)
	if err != nil {
		metrics.AnnounceErrors.Inc()
		return fmt.Errorf("send announce: %w", err)
	}
	return nil
}

// SubscribeLink ссылка на канал для гейта подписки.
func (t *Telegram) SubscribeLink() string {
	return "https://t.me/" + strings.TrimPrefix(t.channel, "@")
}

func formatListing(l domain.Listing) string {
	var b strings.Builder
	switch l.Kind {
	case domain.KindTruck:
		b.WriteString("Свободная машина\n")
		if l.Truck != nil {
			fmt.Fprintf(&b, "%s, %.1f т\n", l.Truck.TruckType, l.Truck.Capacity)
		}
	case domain.KindCargo:
		b.WriteString("Груз\n")
		if l.Cargo != nil {
			fmt.Fprintf(&b, "%s, %.1f т\n", l.Cargo.CargoType, l.Cargo.Weight)
		}
	}
	fmt.Fprintf(&b, "%s - %s\n", l.FromCity, l.ToCity)
	if l.Urgent {
		b.WriteString("Срочно\n")
	}
	if l.ContactPhone != "" {
		fmt.Fprintf(&b, "Тел: %s", l.ContactPhone)
	}
	return strings.TrimSpace(b.String())
}
