package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"attendance.bot/internal/event"
	"attendance.bot/internal/telegram"
)

const botID = int64(555)

type fakeDispatcher struct {
	events []event.Event
}

func (f *fakeDispatcher) Handle(ctx context.Context, ev event.Event) {
	f.events = append(f.events, ev)
}

func post(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)
	return rec
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	disp := &fakeDispatcher{}
	h := &WebhookHandler{Dispatcher: disp, SelfID: botID}

	for _, body := range []string{
		`{"update_id":1,"message":{"message_id":2,"from":{"id":7,"first_name":"Bo"},"chat":{"id":-100,"type":"group"},"text":"/start"}}`,
		`{"update_id":2}`,
		`not json at all`,
		`{"update_id":3,"message":{"message_id":4,"chat":{"id":-100},"text":"hello"}}`,
	} {
		rec := post(t, h, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("body %q: status = %d, want 200", body, rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != `{"ok":true}` {
			t.Fatalf("body %q: response = %q", body, got)
		}
	}

	// Only the well-formed command should have been dispatched.
	if len(disp.events) != 1 {
		t.Fatalf("expected 1 dispatched event, got %d", len(disp.events))
	}
}

func TestDecodeCommand(t *testing.T) {
	update := telegram.Update{
		Message: &telegram.Message{
			From: &telegram.User{ID: 7, FirstName: "Bo", LastName: "Lin"},
			Chat: telegram.Chat{ID: -100, Type: "group"},
			Text: "/fine 123 20",
		},
	}

	ev, ok := DecodeUpdate(update, botID)
	if !ok {
		t.Fatal("expected command event")
	}
	cmd, ok := ev.(event.Command)
	if !ok {
		t.Fatalf("expected Command, got %T", ev)
	}
	if cmd.Name != "fine" || len(cmd.Args) != 2 || cmd.Args[0] != "123" || cmd.Args[1] != "20" {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if cmd.GroupID != -100 || cmd.UserID != 7 || cmd.DisplayName != "Bo Lin" {
		t.Fatalf("unexpected command identity %+v", cmd)
	}
}

func TestDecodeCommandStripsBotSuffix(t *testing.T) {
	update := telegram.Update{
		Message: &telegram.Message{
			From: &telegram.User{ID: 7, FirstName: "Bo"},
			Chat: telegram.Chat{ID: -100},
			Text: "/report@attendance_bot",
		},
	}

	ev, ok := DecodeUpdate(update, botID)
	if !ok {
		t.Fatal("expected command event")
	}
	if cmd := ev.(event.Command); cmd.Name != "report" {
		t.Fatalf("expected suffix stripped, got %q", cmd.Name)
	}
}

func TestDecodeButtonPress(t *testing.T) {
	update := telegram.Update{
		CallbackQuery: &telegram.CallbackQuery{
			ID:   "cb-1",
			From: telegram.User{ID: 7, FirstName: "Bo"},
			Message: &telegram.Message{
				Chat: telegram.Chat{ID: -100},
			},
			Data: "toilet",
		},
	}

	ev, ok := DecodeUpdate(update, botID)
	if !ok {
		t.Fatal("expected button event")
	}
	btn, ok := ev.(event.ButtonPress)
	if !ok {
		t.Fatalf("expected ButtonPress, got %T", ev)
	}
	if btn.Action != "toilet" || btn.CallbackID != "cb-1" || btn.GroupID != -100 || btn.UserID != 7 {
		t.Fatalf("unexpected button %+v", btn)
	}
}

func TestDecodeMembershipChange(t *testing.T) {
	update := telegram.Update{
		Message: &telegram.Message{
			From:           &telegram.User{ID: 7, FirstName: "Bo"},
			Chat:           telegram.Chat{ID: -100, Title: "Night Shift"},
			NewChatMembers: []telegram.User{{ID: 12}, {ID: botID, IsBot: true}},
		},
	}

	ev, ok := DecodeUpdate(update, botID)
	if !ok {
		t.Fatal("expected membership event")
	}
	mc, ok := ev.(event.MembershipChange)
	if !ok {
		t.Fatalf("expected MembershipChange, got %T", ev)
	}
	if mc.GroupID != -100 || mc.GroupTitle != "Night Shift" || mc.AdderID != 7 || mc.AdderName != "Bo" {
		t.Fatalf("unexpected membership change %+v", mc)
	}
}

func TestDecodeIgnoresOtherMembers(t *testing.T) {
	update := telegram.Update{
		Message: &telegram.Message{
			From:           &telegram.User{ID: 7, FirstName: "Bo"},
			Chat:           telegram.Chat{ID: -100},
			NewChatMembers: []telegram.User{{ID: 12}},
		},
	}

	if _, ok := DecodeUpdate(update, botID); ok {
		t.Fatal("adding someone else must not produce an event")
	}
}

func TestDecodeDropsUnrecognizedShapes(t *testing.T) {
	for _, update := range []telegram.Update{
		{},
		{Message: &telegram.Message{Chat: telegram.Chat{ID: -100}, Text: "/start"}}, // no sender
		{Message: &telegram.Message{From: &telegram.User{ID: 7}, Chat: telegram.Chat{ID: -100}, Text: "plain text"}},
		{Message: &telegram.Message{From: &telegram.User{ID: 7}, Chat: telegram.Chat{ID: -100}, Text: "/"}},
		{CallbackQuery: &telegram.CallbackQuery{ID: "cb", From: telegram.User{ID: 7}}}, // no message
	} {
		if ev, ok := DecodeUpdate(update, botID); ok {
			t.Fatalf("expected drop, got %+v", ev)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := NewRouter(&WebhookHandler{Dispatcher: &fakeDispatcher{}, SelfID: botID})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health body %q", rec.Body.String())
	}
}
