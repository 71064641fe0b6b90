package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedRequest struct {
	path    string
	payload map[string]any
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r recordedRequest)) (*Client, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		req := recordedRequest{path: r.URL.Path, payload: payload}
		requests = append(requests, req)
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return NewClient("TOKEN", WithBaseURL(srv.URL)), &requests
}

func respondOK(w http.ResponseWriter, result any) {
	raw, _ := json.Marshal(result)
	json.NewEncoder(w).Encode(apiResponse{OK: true, Result: raw})
}

func TestSendMessage(t *testing.T) {
	client, requests := newTestClient(t, func(w http.ResponseWriter, r recordedRequest) {
		respondOK(w, map[string]any{})
	})

	if err := client.SendMessage(context.Background(), -100, "hello"); err != nil {
		t.Fatalf("send message: %v", err)
	}

	req := (*requests)[0]
	if req.path != "/botTOKEN/sendMessage" {
		t.Fatalf("unexpected path %q", req.path)
	}
	if req.payload["chat_id"] != float64(-100) || req.payload["text"] != "hello" {
		t.Fatalf("unexpected payload %+v", req.payload)
	}
	if _, ok := req.payload["parse_mode"]; ok {
		t.Fatal("plain message must not set parse_mode")
	}
}

func TestSendMessageHTMLSetsParseMode(t *testing.T) {
	client, requests := newTestClient(t, func(w http.ResponseWriter, r recordedRequest) {
		respondOK(w, map[string]any{})
	})

	if err := client.SendMessageHTML(context.Background(), -100, "<b>hi</b>"); err != nil {
		t.Fatalf("send html: %v", err)
	}
	if got := (*requests)[0].payload["parse_mode"]; got != "HTML" {
		t.Fatalf("parse_mode = %v, want HTML", got)
	}
}

func TestSendMenuCarriesKeyboard(t *testing.T) {
	client, requests := newTestClient(t, func(w http.ResponseWriter, r recordedRequest) {
		respondOK(w, map[string]any{})
	})

	markup := InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{{{Text: "Back", CallbackData: "back"}}},
	}
	if err := client.SendMenu(context.Background(), -100, "menu", markup); err != nil {
		t.Fatalf("send menu: %v", err)
	}

	raw, ok := (*requests)[0].payload["reply_markup"].(map[string]any)
	if !ok {
		t.Fatalf("missing reply_markup in %+v", (*requests)[0].payload)
	}
	if _, ok := raw["inline_keyboard"]; !ok {
		t.Fatal("reply_markup missing inline_keyboard")
	}
}

func TestAPIRejection(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r recordedRequest) {
		json.NewEncoder(w).Encode(apiResponse{OK: false, Description: "chat not found"})
	})

	err := client.SendMessage(context.Background(), -100, "hello")
	if !errors.Is(err, ErrAPIRejected) {
		t.Fatalf("expected ErrAPIRejected, got %v", err)
	}
}

func TestGetMe(t *testing.T) {
	client, requests := newTestClient(t, func(w http.ResponseWriter, r recordedRequest) {
		respondOK(w, User{ID: 555, IsBot: true, FirstName: "Attendance", Username: "attendance_bot"})
	})

	me, err := client.GetMe(context.Background())
	if err != nil {
		t.Fatalf("get me: %v", err)
	}
	if me.ID != 555 || me.Username != "attendance_bot" {
		t.Fatalf("unexpected identity %+v", me)
	}
	if got := (*requests)[0].path; got != "/botTOKEN/getMe" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestLeaveChatAndSetWebhook(t *testing.T) {
	client, requests := newTestClient(t, func(w http.ResponseWriter, r recordedRequest) {
		respondOK(w, true)
	})
	ctx := context.Background()

	if err := client.LeaveChat(ctx, -100); err != nil {
		t.Fatalf("leave chat: %v", err)
	}
	if err := client.SetWebhook(ctx, "https://bot.example.com/webhook"); err != nil {
		t.Fatalf("set webhook: %v", err)
	}

	if got := (*requests)[0].path; got != "/botTOKEN/leaveChat" {
		t.Fatalf("unexpected path %q", got)
	}
	if got := (*requests)[1].payload["url"]; got != "https://bot.example.com/webhook" {
		t.Fatalf("unexpected webhook url %v", got)
	}
}

func TestFullName(t *testing.T) {
	tests := []struct {
		user User
		want string
	}{
		{User{ID: 7, FirstName: "Bo", LastName: "Lin"}, "Bo Lin"},
		{User{ID: 7, FirstName: "Bo"}, "Bo"},
		{User{ID: 7}, "7"},
	}
	for _, tt := range tests {
		if got := tt.user.FullName(); got != tt.want {
			t.Errorf("FullName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func TestMentionEscapesLabel(t *testing.T) {
	got := Mention(7, `Bo <&> Lin`)
	want := `<a href="tg://user?id=7">Bo &lt;&amp;&gt; Lin</a>`
	if got != want {
		t.Fatalf("Mention = %q, want %q", got, want)
	}
}
