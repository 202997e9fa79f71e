// Package telegram is a thin client over the messaging provider's HTTP API.
// It covers identity lookup, webhook registration and removal, and outbound
// send/edit operations on behalf of an arbitrary bot token.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Deduh/foodbot-back/internal/domain"
	"github.com/Deduh/foodbot-back/internal/metrics"
)

// BotInfo is the provider's description of a bot identity.
type BotInfo struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

// InlineButton is one inline keyboard button bound to callback data.
type InlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// InlineKeyboard is rows of inline buttons attached to an outbound message.
type InlineKeyboard struct {
	InlineKeyboard [][]InlineButton `json:"inline_keyboard"`
}

// SendMessageRequest describes an outbound sendMessage call.
type SendMessageRequest struct {
	ChatID      int64           `json:"chat_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboard `json:"reply_markup,omitempty"`
}

// EditMessageRequest describes an editMessageText call.
type EditMessageRequest struct {
	ChatID      int64           `json:"chat_id"`
	MessageID   int             `json:"message_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboard `json:"reply_markup,omitempty"`
}

// Message is the subset of the provider's message object the platform needs.
type Message struct {
	MessageID int `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// Client performs Bot API calls. The zero value is not usable; use NewClient.
type Client struct {
	baseURL string
	http    *http.Client
	m       *metrics.Metrics
}

// NewClient builds a gateway client against the given API base URL,
// e.g. "https://api.telegram.org".
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = BuildHTTPClient()
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Instrument records per-method call counts and latency on the given collectors.
func (c *Client) Instrument(m *metrics.Metrics) {
	c.m = m
}

// GetMe validates a bot token and returns the provider-assigned identity.
func (c *Client) GetMe(ctx context.Context, token string) (*BotInfo, error) {
	var info BotInfo
	if err := c.call(ctx, token, "getMe", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SetWebhook registers the given URL as the bot's update callback.
func (c *Client) SetWebhook(ctx context.Context, token, url string) error {
	payload := map[string]any{"url": url}
	var ok bool
	if err := c.call(ctx, token, "setWebhook", payload, &ok); err != nil {
		return err
	}
	if !ok {
		return &domain.ProviderError{Method: "setWebhook", Description: "provider declined webhook registration"}
	}
	return nil
}

// DeleteWebhook removes the bot's webhook, optionally dropping queued updates.
func (c *Client) DeleteWebhook(ctx context.Context, token string, dropPending bool) error {
	payload := map[string]any{"drop_pending_updates": dropPending}
	var ok bool
	return c.call(ctx, token, "deleteWebhook", payload, &ok)
}

// SendMessage delivers a message on behalf of the given bot token.
func (c *Client) SendMessage(ctx context.Context, token string, req SendMessageRequest) (*Message, error) {
	var msg Message
	if err := c.call(ctx, token, "sendMessage", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessageText rewrites an already sent message in place.
func (c *Client) EditMessageText(ctx context.Context, token string, req EditMessageRequest) error {
	var raw json.RawMessage
	return c.call(ctx, token, "editMessageText", req, &raw)
}

// AnswerCallbackQuery acknowledges a callback button press with transient feedback.
func (c *Client) AnswerCallbackQuery(ctx context.Context, token, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	var ok bool
	return c.call(ctx, token, "answerCallbackQuery", payload, &ok)
}

// DeleteMessage removes a message from a chat.
func (c *Client) DeleteMessage(ctx context.Context, token string, chatID int64, messageID int) error {
	payload := map[string]any{"chat_id": chatID, "message_id": messageID}
	var ok bool
	return c.call(ctx, token, "deleteMessage", payload, &ok)
}

func (c *Client) call(ctx context.Context, token, method string, payload, result any) error {
	start := time.Now()
	err := c.do(ctx, token, method, payload, result)
	if c.m != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.m.ProviderCalls.WithLabelValues(method, status).Inc()
		c.m.ProviderLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
	return err
}

func (c *Client) do(ctx context.Context, token, method string, payload, result any) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, token, method)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("telegram: marshal %s: %w", method, err)
		}
		body = bytes.NewReader(data)
	}

	httpMethod := http.MethodPost
	if payload == nil {
		httpMethod = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, url, body)
	if err != nil {
		return &domain.ProviderError{Method: method, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.ProviderError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &domain.ProviderError{Method: method, Code: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !env.OK {
		return &domain.ProviderError{Method: method, Code: env.ErrorCode, Description: env.Description}
	}
	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return &domain.ProviderError{Method: method, Err: fmt.Errorf("decode result: %w", err)}
		}
	}
	return nil
}
