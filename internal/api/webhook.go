package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"attendance.bot/internal/event"
	"attendance.bot/internal/telegram"
	"github.com/rs/zerolog/log"
)

// Handler dispatches a decoded inbound event.
type Handler interface {
	Handle(ctx context.Context, ev event.Event)
}

// WebhookHandler receives platform update payloads. The platform
// requires a fast 200 no matter what happened internally, so every
// outcome, including a payload we cannot parse, ends in the same
// acknowledgment body.
type WebhookHandler struct {
	Dispatcher Handler
	// SelfID is the bot's own user ID, used to recognize the bot being
	// added to a group.
	SelfID int64
}

// Receive handles POST /webhook.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	defer func() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}()

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("Dropping unparseable update")
		return
	}

	ev, ok := DecodeUpdate(update, h.SelfID)
	if !ok {
		log.Ctx(r.Context()).Debug().Int64("update_id", update.UpdateID).Msg("Dropping unrecognized update shape")
		return
	}

	h.Dispatcher.Handle(r.Context(), ev)
}

// DecodeUpdate maps a platform update onto the inbound event union. It
// reports false for shapes this service does not consume.
func DecodeUpdate(update telegram.Update, selfID int64) (event.Event, bool) {
	if cq := update.CallbackQuery; cq != nil && cq.Message != nil {
		return event.ButtonPress{
			GroupID:     cq.Message.Chat.ID,
			UserID:      cq.From.ID,
			DisplayName: cq.From.FullName(),
			CallbackID:  cq.ID,
			Action:      cq.Data,
		}, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil, false
	}

	for _, member := range msg.NewChatMembers {
		if member.ID == selfID {
			return event.MembershipChange{
				GroupID:    msg.Chat.ID,
				GroupTitle: msg.Chat.Title,
				AdderID:    msg.From.ID,
				AdderName:  msg.From.FullName(),
			}, true
		}
	}

	if strings.HasPrefix(msg.Text, "/") {
		fields := strings.Fields(msg.Text)
		name := strings.TrimPrefix(fields[0], "/")
		// Commands in groups arrive as /report@bot_username.
		if at := strings.Index(name, "@"); at >= 0 {
			name = name[:at]
		}
		if name == "" {
			return nil, false
		}
		return event.Command{
			GroupID:     msg.Chat.ID,
			UserID:      msg.From.ID,
			DisplayName: msg.From.FullName(),
			Name:        name,
			Args:        fields[1:],
		}, true
	}

	return nil, false
}
