package notify

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stock_bot/internal/models"
	"stock_bot/pkg/logger"
)

type Notifier interface {
	Notify(msg string)
	Notifyf(format string, args ...any)
}

// PositionView — срез портфеля для команд бота.
type PositionView interface {
	Snapshot() []models.Position
	TotalAsset() float64
	Cash() float64
}

// Telegram — пассивный нотифайер плюс пара команд (/positions, /status).
// Отправка fire-and-forget: торговый цикл не ждёт сеть телеграма.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	view   PositionView

	queue chan string
}

func NewTelegram(token string, chatID int64, view PositionView) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	t := &Telegram{
		bot:    b,
		chatID: chatID,
		view:   view,
		queue:  make(chan string, 64),
	}
	return t, nil
}

func (t *Telegram) Notify(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	select {
	case t.queue <- msg:
	default:
		logger.Warn("[telegram] send queue full, dropping message")
	}
}

func (t *Telegram) Notifyf(format string, args ...any) {
	t.Notify(fmt.Sprintf(format, args...))
}

// Run — один воркер отправки и обработка команд. Блокируется до ctx.
func (t *Telegram) Run(ctx context.Context) {
	go t.sendLoop(ctx)

	upd := tgbot.NewUpdate(0)
	upd.Timeout = 30
	updates := t.bot.GetUpdatesChan(upd)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Message == nil || u.Message.Chat.ID != t.chatID {
				continue
			}
			t.handleCommand(u.Message.Command())
		}
	}
}

func (t *Telegram) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.queue:
			m := tgbot.NewMessage(t.chatID, msg)
			m.ParseMode = tgbot.ModeHTML
			if _, err := t.bot.Send(m); err != nil {
				logger.Warn("[telegram] send failed: %v", err)
			}
		}
	}
}

func (t *Telegram) handleCommand(cmd string) {
	switch cmd {
	case "positions":
		t.Notify(formatPositions(t.view.Snapshot()))
	case "status":
		t.Notifyf("💰 equity: %.0f\ncash: %.0f\nopen positions: %d",
			t.view.TotalAsset(), t.view.Cash(), len(t.view.Snapshot()))
	}
}

func formatPositions(positions []models.Position) string {
	if len(positions) == 0 {
		return "портфель пуст"
	}
	var b strings.Builder
	b.WriteString("📊 <b>positions</b>\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "%s (%s): %d @ %.0f, now %.0f (%+.2f%%)\n",
			p.Name, p.Symbol, p.Qty, p.AvgPrice, p.CurrentPrice, p.PnLRatio(p.CurrentPrice)*100)
	}
	return b.String()
}

// Stdout — заглушка без токена: всё в лог.
type Stdout struct{}

func (Stdout) Notify(msg string)                  { logger.Info("[notify] %s", msg) }
func (Stdout) Notifyf(format string, args ...any) { logger.Info("[notify] "+format, args...) }
