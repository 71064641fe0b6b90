// Package telegram is the outbound Bot API client. Calls go through a
// circuit breaker so a platform outage does not pile up blocked
// goroutines behind a dead endpoint.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultBaseURL = "https://api.telegram.org"

// API is the contract the rest of the service depends on; the concrete
// Client talks HTTP, tests substitute fakes.
type API interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageHTML(ctx context.Context, chatID int64, text string) error
	SendMenu(ctx context.Context, chatID int64, text string, markup InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	LeaveChat(ctx context.Context, chatID int64) error
}

// Client calls the Bot API over HTTPS.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
	cb      *gobreaker.CircuitBreaker
}

// Option adjusts client construction.
type Option func(*Client)

// WithBaseURL overrides the API host, used by tests and local mocks.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// NewClient creates a Bot API client for the given token. The breaker
// trips once at least 10 calls have been made and half of them failed,
// mirroring the protection we give any external dependency.
func NewClient(token string, opts ...Option) *Client {
	settings := gobreaker.Settings{
		Name:        "Telegram-Bot-API",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}

	c := &Client{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
		token:   token,
		cb:      gobreaker.NewCircuitBreaker(settings),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse is the Bot API envelope wrapped around every result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

// ErrAPIRejected is returned when the platform answers ok=false.
var ErrAPIRejected = errors.New("bot api rejected request")

// call posts payload to the named Bot API method through the breaker and
// unmarshals the result into out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	tracer := otel.Tracer("telegram-client")
	ctx, span := tracer.Start(ctx, "bot_api."+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s request: %w", method, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to call bot api: %w", err)
		}
		defer resp.Body.Close()

		var envelope apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
		}
		if !envelope.OK {
			return nil, fmt.Errorf("%w: %s: %s", ErrAPIRejected, method, envelope.Description)
		}
		return envelope.Result, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("app.breaker_open", errors.Is(err, gobreaker.ErrOpenState)))
		return err
	}

	if out != nil {
		raw, _ := result.(json.RawMessage)
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// SendMessage sends a plain text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	}, nil)
}

// SendMessageHTML sends an HTML-formatted message, used for the messages
// that embed a clickable user mention.
func (c *Client) SendMessageHTML(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}, nil)
}

// SendMenu sends a message with an inline keyboard attached.
func (c *Client) SendMenu(ctx context.Context, chatID int64, text string, markup InlineKeyboardMarkup) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":      chatID,
		"text":         text,
		"reply_markup": markup,
	}, nil)
}

// AnswerCallbackQuery acknowledges a button press with a short notice.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
	}, nil)
}

// LeaveChat removes the bot from a group.
func (c *Client) LeaveChat(ctx context.Context, chatID int64) error {
	return c.call(ctx, "leaveChat", map[string]any{
		"chat_id": chatID,
	}, nil)
}

// SetWebhook registers the externally reachable webhook URL at startup.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	return c.call(ctx, "setWebhook", map[string]any{
		"url": url,
	}, nil)
}

// GetMe returns the bot's own identity, needed by the membership guard
// to recognize when the bot itself was added to a group.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var me User
	err := c.call(ctx, "getMe", map[string]any{}, &me)
	return me, err
}
