package notify

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram шлёт односторонние уведомления в админ-чат салона:
// покупки абонементов, исчерпание, зависшие резервы. Ничего не
// принимает и update-цикл не крутит.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *slog.Logger
}

// New возвращает nil, если токен не задан: уведомления выключены,
// вызывающие обязаны переживать nil (см. Notify).
func New(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{api: api, chatID: chatID, log: log}, nil
}

func (t *Telegram) Notify(_ context.Context, text string) {
	if t == nil {
		return
	}
	if _, err := t.api.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		t.log.Error("notify send failed", "err", err)
	}
}
