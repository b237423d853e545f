// Package telegram adapts the Telegram Bot API to the bot package: it sends
// HTML replies, edits and photos, and turns incoming updates into
// bot.Message values, by long polling or through a webhook.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-quota-bot/internal/bot"
	"github.com/tbourn/go-quota-bot/internal/config"
)

// SecretHeader carries the webhook secret on every update Telegram posts.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// allowedUpdates restricts delivery to plain messages.
var allowedUpdates = []string{"message"}

// Client talks to the Bot API. It implements bot.Sender.
type Client struct {
	api *tgbotapi.BotAPI
	cfg config.TelegramConfig
}

// Option customizes New.
type Option func(*options)

type options struct {
	hc       *http.Client
	endpoint string
}

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(hc *http.Client) Option { return func(o *options) { o.hc = hc } }

// WithEndpoint points the client at another Bot API server. The format is
// tgbotapi.APIEndpoint's: "https://host/bot%s/%s".
func WithEndpoint(endpoint string) Option { return func(o *options) { o.endpoint = endpoint } }

// New authenticates with cfg.Token (a getMe round trip) and returns a Client.
func New(cfg config.TelegramConfig, opts ...Option) (*Client, error) {
	o := options{endpoint: tgbotapi.APIEndpoint}
	for _, fn := range opts {
		fn(&o)
	}
	if o.hc == nil {
		// Long polls hold the connection for PollTimeout seconds.
		o.hc = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   time.Duration(cfg.PollTimeout+15) * time.Second,
		}
	}
	if cfg.Token == "" {
		return nil, errors.New("telegram: empty bot token")
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, o.endpoint, o.hc)
	if err != nil {
		return nil, fmt.Errorf("telegram: authenticate: %w", err)
	}
	api.Debug = cfg.Debug
	return &Client{api: api, cfg: cfg}, nil
}

// Username returns the bot's username without the leading @.
func (c *Client) Username() string { return c.api.Self.UserName }

func (c *Client) span(ctx context.Context, method string, chatID int64) (context.Context, trace.Span) {
	return otel.Tracer("telegram").Start(ctx, "telegram."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
}

func finish(span trace.Span, method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	apiCalls.WithLabelValues(method, outcome).Inc()
	span.End()
}

// Reply sends html to chatID as a reply to message replyTo and returns the
// new message id.
func (c *Client) Reply(ctx context.Context, chatID int64, replyTo int, html string) (id int, err error) {
	_, span := c.span(ctx, "sendMessage", chatID)
	defer func() { finish(span, "sendMessage", err) }()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = replyTo
	msg.AllowSendingWithoutReply = true
	msg.DisableWebPagePreview = true
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("telegram: send message: %w", err)
	}
	return sent.MessageID, nil
}

// Edit replaces the text of a message the bot sent. Editing to identical
// text is not an error.
func (c *Client) Edit(ctx context.Context, chatID int64, messageID int, html string) (err error) {
	_, span := c.span(ctx, "editMessageText", chatID)
	defer func() { finish(span, "editMessageText", err) }()
	if err := ctx.Err(); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, html)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	if _, err := c.api.Request(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("telegram: edit message: %w", err)
	}
	return nil
}

// SendPhoto sends the image at url as a reply to message replyTo. Telegram
// downloads the image itself.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, replyTo int, url string) (err error) {
	_, span := c.span(ctx, "sendPhoto", chatID)
	defer func() { finish(span, "sendPhoto", err) }()
	if err := ctx.Err(); err != nil {
		return err
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	photo.ReplyToMessageID = replyTo
	photo.AllowSendingWithoutReply = true
	if _, err := c.api.Send(photo); err != nil {
		return fmt.Errorf("telegram: send photo: %w", err)
	}
	return nil
}

// SetWebhook registers cfg.WebhookURL with the secret token Telegram must
// echo in SecretHeader.
func (c *Client) SetWebhook(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	allowed, _ := json.Marshal(allowedUpdates)
	params := tgbotapi.Params{"url": c.cfg.WebhookURL, "allowed_updates": string(allowed)}
	params.AddNonEmpty("secret_token", c.cfg.WebhookSecret)
	if _, err := c.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("telegram: set webhook: %w", err)
	}
	log.Info().Str("url", c.cfg.WebhookURL).Msg("telegram webhook registered")
	return nil
}

// DeleteWebhook removes any registered webhook so long polling can start.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("telegram: delete webhook: %w", err)
	}
	return nil
}

// Poll long-polls for updates and delivers the convertible ones on the
// returned channel, which is closed once ctx ends.
func (c *Client) Poll(ctx context.Context) <-chan bot.Message {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.cfg.PollTimeout
	u.AllowedUpdates = allowedUpdates
	updates := c.api.GetUpdatesChan(u)

	out := make(chan bot.Message)
	go func() {
		defer close(out)
		defer c.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				m, ok := ToMessage(upd)
				if !ok {
					continue
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	log.Info().Str("bot", c.Username()).Int("timeout", c.cfg.PollTimeout).Msg("telegram polling started")
	return out
}

// ToMessage converts an update. It reports false for anything that is not
// a text message with a sender.
func ToMessage(u tgbotapi.Update) (bot.Message, bool) {
	m := u.Message
	if m == nil || m.Chat == nil || m.From == nil || m.Text == "" {
		return bot.Message{}, false
	}
	out := bot.Message{
		UpdateID:     u.UpdateID,
		ChatID:       m.Chat.ID,
		ChatType:     m.Chat.Type,
		ChatTitle:    m.Chat.Title,
		ChatUsername: m.Chat.UserName,
		MessageID:    m.MessageID,
		SenderID:     m.From.ID,
		Text:         m.Text,
	}
	if r := m.ReplyToMessage; r != nil && r.From != nil {
		out.ReplyToSenderID = r.From.ID
	}
	return out, true
}

// ParseUpdate decodes a webhook body.
func ParseUpdate(body []byte) (tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return u, fmt.Errorf("telegram: decode update: %w", err)
	}
	if u.UpdateID == 0 && u.Message == nil {
		return u, errors.New("telegram: empty update")
	}
	return u, nil
}
