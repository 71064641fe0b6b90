// Package notify is the outbound notification dispatcher: an in-process
// queue with a pool of delivery workers, so slow or failing platform
// calls never stall the webhook path. Failed deliveries are retried
// with exponential backoff.
package notify

import (
	"context"
	"math"
	"time"

	"attendance.bot/internal/i18n"
	"attendance.bot/internal/telegram"
	"attendance.bot/pkg/logger"
	"attendance.bot/pkg/telemetry"
	"github.com/rs/zerolog/log"
)

// Op identifies the delivery action a queued message needs.
type Op string

const (
	OpGroupText      Op = "group_text"
	OpGroupHTML      Op = "group_html"
	OpMenu           Op = "menu"
	OpDirect         Op = "direct"
	OpCallbackAnswer Op = "callback_answer"
	OpLeave          Op = "leave"
)

// Message is one outbound delivery, with the trace context captured at
// enqueue time.
type Message struct {
	Op         Op
	ChatID     int64
	Text       string
	Markup     telegram.InlineKeyboardMarkup
	CallbackID string
	Attempts   int
	Trace      map[string]string
}

// Dispatcher queues messages and delivers them through the Bot API.
type Dispatcher struct {
	sender telegram.API
	queue  chan Message
	// Concurrency controls how many messages can be delivered at the same time.
	Concurrency int
	maxAttempts int
}

// NewDispatcher creates a dispatcher ready to be started.
func NewDispatcher(sender telegram.API) *Dispatcher {
	return &Dispatcher{
		sender:      sender,
		queue:       make(chan Message, 256),
		Concurrency: 4,
		maxAttempts: 5,
	}
}

// Start launches the delivery workers. They run until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	log.Info().Int("concurrency", d.Concurrency).Msg("Notification dispatcher started")
	for i := 0; i < d.Concurrency; i++ {
		go d.deliverLoop(ctx)
	}
}

func (d *Dispatcher) deliverLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			d.handleSingleMessage(ctx, msg)
		}
	}
}

// handleSingleMessage delivers one message and decides whether to
// requeue it for a retry.
func (d *Dispatcher) handleSingleMessage(ctx context.Context, msg Message) {
	ctx, span := telemetry.StartTimerSpan(ctx, "deliver_notification", msg.Trace, msg.ChatID, 0, string(msg.Op))
	defer span.End()
	ctx = logger.EnrichContextWithLogger(ctx)

	err := d.deliver(ctx, msg)
	if err == nil {
		return
	}

	// Callback answers expire platform-side within seconds, retrying is pointless.
	if msg.Op == OpCallbackAnswer || msg.Attempts+1 >= d.maxAttempts {
		log.Ctx(ctx).Error().Err(err).Str("op", string(msg.Op)).Int64("chat_id", msg.ChatID).
			Msg("Dropping undeliverable notification")
		return
	}

	msg.Attempts++
	delay := calculateBackoff(msg.Attempts)
	log.Ctx(ctx).Warn().Err(err).Str("op", string(msg.Op)).Int32("retry_delay", delay).
		Msg("Delivery failed, will retry")

	time.AfterFunc(time.Duration(delay)*time.Second, func() {
		select {
		case d.queue <- msg:
		default:
			log.Warn().Str("op", string(msg.Op)).Msg("Queue full, dropping retried notification")
		}
	})
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) error {
	switch msg.Op {
	case OpGroupText, OpDirect:
		return d.sender.SendMessage(ctx, msg.ChatID, msg.Text)
	case OpGroupHTML:
		return d.sender.SendMessageHTML(ctx, msg.ChatID, msg.Text)
	case OpMenu:
		return d.sender.SendMenu(ctx, msg.ChatID, msg.Text, msg.Markup)
	case OpCallbackAnswer:
		return d.sender.AnswerCallbackQuery(ctx, msg.CallbackID, msg.Text)
	case OpLeave:
		return d.sender.LeaveChat(ctx, msg.ChatID)
	}
	return nil
}

// enqueue adds a message without ever blocking the caller. On overflow
// the message is dropped and logged; the webhook path must stay fast.
func (d *Dispatcher) enqueue(ctx context.Context, msg Message) {
	msg.Trace = telemetry.InjectTraceContext(ctx)
	select {
	case d.queue <- msg:
	default:
		log.Ctx(ctx).Warn().Str("op", string(msg.Op)).Int64("chat_id", msg.ChatID).
			Msg("Notification queue full, dropping message")
	}
}

// GroupMessage sends plain text to a group.
func (d *Dispatcher) GroupMessage(ctx context.Context, chatID int64, text string) {
	d.enqueue(ctx, Message{Op: OpGroupText, ChatID: chatID, Text: text})
}

// GroupHTML sends HTML-formatted text to a group, used for messages that
// embed a clickable mention.
func (d *Dispatcher) GroupHTML(ctx context.Context, chatID int64, text string) {
	d.enqueue(ctx, Message{Op: OpGroupHTML, ChatID: chatID, Text: text})
}

// Menu sends the action keyboard in the person's language.
func (d *Dispatcher) Menu(ctx context.Context, chatID int64, lang i18n.Lang) {
	d.enqueue(ctx, Message{
		Op:     OpMenu,
		ChatID: chatID,
		Text:   i18n.Label("menu_title", lang),
		Markup: BuildMenu(lang),
	})
}

// Direct sends plain text straight to a person.
func (d *Dispatcher) Direct(ctx context.Context, userID int64, text string) {
	d.enqueue(ctx, Message{Op: OpDirect, ChatID: userID, Text: text})
}

// CallbackAnswer acknowledges a button press.
func (d *Dispatcher) CallbackAnswer(ctx context.Context, callbackID, text string) {
	d.enqueue(ctx, Message{Op: OpCallbackAnswer, CallbackID: callbackID, Text: text})
}

// Leave removes the bot from a group.
func (d *Dispatcher) Leave(ctx context.Context, chatID int64) {
	d.enqueue(ctx, Message{Op: OpLeave, ChatID: chatID})
}

// BuildMenu lays out the action keyboard: work/off on the first row, the
// three short breaks on the second, meeting and back on their own rows.
func BuildMenu(lang i18n.Lang) telegram.InlineKeyboardMarkup {
	btn := func(key string) telegram.InlineKeyboardButton {
		return telegram.InlineKeyboardButton{Text: i18n.Label(key, lang), CallbackData: key}
	}
	return telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{btn("work"), btn("off")},
			{btn("eat"), btn("toilet"), btn("smoke")},
			{btn("meeting")},
			{btn("back")},
		},
	}
}

// calculateBackoff determines how long to wait before retrying a failed
// delivery. It increases the delay exponentially with each retry.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 {
		return 3600 // max at 1 hour
	}
	return backoff
}
