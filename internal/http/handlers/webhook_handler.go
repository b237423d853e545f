// Telegram webhook handler.
//
// POST {WEBHOOK_PATH} receives one update per request. The route is guarded
// by the secret token registered with setWebhook; this handler only decodes,
// deduplicates and hands the message to the bot runner. Telegram retries
// any non-2xx answer, so every update that was understood is acknowledged
// with 200 even when the bot ignores it.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-quota-bot/internal/bot"
	"github.com/tbourn/go-quota-bot/internal/repo"
	"github.com/tbourn/go-quota-bot/internal/telegram"
)

// Deduper records update ids. MarkProcessed returns repo.ErrDuplicate for an
// id it has already seen.
type Deduper interface {
	MarkProcessed(ctx context.Context, updateID, chatID int64) error
}

// UpdateSink schedules a message for handling. *bot.Runner implements it.
type UpdateSink interface {
	Submit(ctx context.Context, m bot.Message) error
}

// WebhookResponse acknowledges an update.
type WebhookResponse struct {
	// accepted, duplicate or ignored
	Status string `json:"status" example:"accepted"`
}

// Webhook receives Telegram updates.
type Webhook struct {
	dedupe Deduper
	sink   UpdateSink
}

// NewWebhook returns the webhook endpoint. A nil dedupe disables
// redelivery detection.
func NewWebhook(dedupe Deduper, sink UpdateSink) *Webhook {
	return &Webhook{dedupe: dedupe, sink: sink}
}

// Receive handles POST {WEBHOOK_PATH}. It answers 200 with status
// accepted, duplicate or ignored; 400 for a malformed update; 503 when the
// runner no longer accepts work.
func (h *Webhook) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidUpdate, "unreadable body")
		return
	}
	u, err := telegram.ParseUpdate(body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidUpdate, err.Error())
		return
	}
	m, isText := telegram.ToMessage(u)
	if !isText {
		ok(c, http.StatusOK, WebhookResponse{Status: "ignored"})
		return
	}

	ctx := c.Request.Context()
	if h.dedupe != nil {
		err := h.dedupe.MarkProcessed(ctx, int64(u.UpdateID), m.ChatID)
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			ok(c, http.StatusOK, WebhookResponse{Status: "duplicate"})
			return
		case err != nil:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
			return
		}
	}

	// The id is already recorded, so a failed submit is not retried by a
	// redelivery. Submit only fails while the process is shutting down.
	if err := h.sink.Submit(ctx, m); err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeOverloaded, "bot unavailable")
		return
	}
	ok(c, http.StatusOK, WebhookResponse{Status: "accepted"})
}
