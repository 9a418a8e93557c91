package telegram

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"tululu_parser/internal/pipeline"
)

// maxListedIDs caps how many skipped or failed IDs are spelled out in a message.
const maxListedIDs = 30

// Notifier sends run summaries to a single Telegram chat.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zap.SugaredLogger
}

// NewNotifier connects to the Bot API with the default endpoint.
func NewNotifier(token string, chatID int64, log *zap.SugaredLogger) (*Notifier, error) {
	return NewNotifierWithClient(token, chatID, tgbotapi.APIEndpoint, &http.Client{Timeout: 30 * time.Second}, log)
}

// NewNotifierWithClient allows a custom Bot API endpoint, e.g. a local bot server.
// endpoint uses the tgbotapi.APIEndpoint format ("%s" for token, then "%s" for method).
func NewNotifierWithClient(token string, chatID int64, endpoint string, client tgbotapi.HTTPClient, log *zap.SugaredLogger) (*Notifier, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("не задан чат для уведомлений")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("ошибка авторизации бота: %w", err)
	}
	bot.Debug = false

	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log.Debugw("telegram: авторизован", "bot", bot.Self.UserName)

	return &Notifier{bot: bot, chatID: chatID, log: log}, nil
}

// NotifyReport sends the summary of a finished run.
func (n *Notifier) NotifyReport(start, end int, report pipeline.Report, runErr error) error {
	text := FormatReport(start, end, report, runErr)
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return fmt.Errorf("ошибка отправки уведомления: %w", err)
	}
	n.log.Debugw("telegram: отчёт отправлен", "chat_id", n.chatID)
	return nil
}

// FormatReport renders a run summary as plain text.
func FormatReport(start, end int, report pipeline.Report, runErr error) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📚 Книги %d–%d\n", start, end)
	fmt.Fprintf(&b, "✅ Скачано: %d\n", len(report.Downloaded))
	fmt.Fprintf(&b, "⏭ Пропущено: %d", len(report.Skipped))
	if len(report.Skipped) > 0 {
		b.WriteString(" (" + joinIDs(report.Skipped) + ")")
	}
	b.WriteString("\n")

	if len(report.Failed) > 0 {
		failed := make([]int, 0, len(report.Failed))
		for id := range report.Failed {
			failed = append(failed, id)
		}
		sort.Ints(failed)
		fmt.Fprintf(&b, "⚠️ Не разобрано: %d (%s)\n", len(failed), joinIDs(failed))
	}

	if runErr != nil {
		fmt.Fprintf(&b, "❌ Остановлено: %v\n", runErr)
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinIDs(ids []int) string {
	parts := make([]string, 0, min(len(ids), maxListedIDs)+1)
	for i, id := range ids {
		if i == maxListedIDs {
			parts = append(parts, fmt.Sprintf("… ещё %d", len(ids)-maxListedIDs))
			break
		}
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ", ")
}
