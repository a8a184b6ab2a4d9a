package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type stubHandler struct {
	mu       sync.Mutex
	messages []string
	reply    string
	today    string
	week     string
}

func (h *stubHandler) HandleMessage(_ context.Context, _, userName, text string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, userName+": "+text)
	return h.reply, nil
}

func (h *stubHandler) TodaySummary(context.Context, string) (string, error) { return h.today, nil }

func (h *stubHandler) WeekSummary(context.Context, string) (string, error) { return h.week, nil }

// fakeAPI records sendMessage texts and answers every method with ok.
type fakeAPI struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			f.mu.Lock()
			f.sent = append(f.sent, payload["text"].(string))
			f.mu.Unlock()
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	})
}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestBot(t *testing.T, handler Handler) (*Bot, *fakeAPI) {
	t.Helper()

	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	cfg := Config{
		BotToken:       "test-token",
		AllowedUserIDs: []int64{7},
		APIBaseURL:     srv.URL,
	}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient returned %v", err)
	}
	client.httpClient = srv.Client()

	bot, err := NewBot(cfg, client, handler)
	if err != nil {
		t.Fatalf("NewBot returned %v", err)
	}
	return bot, api
}

func privateUpdate(userID int64, text string) Update {
	return Update{
		UpdateID: 1,
		Message: &Message{
			From: &User{ID: userID, FirstName: "Arthur"},
			Chat: Chat{ID: userID, Type: "private"},
			Text: text,
		},
	}
}

func TestHandleUpdateRoutesPlainMessage(t *testing.T) {
	t.Parallel()

	h := &stubHandler{reply: "Very good, sir."}
	bot, api := newTestBot(t, h)

	bot.handleUpdate(context.Background(), privateUpdate(7, "what's for dinner?"))

	if len(h.messages) != 1 || h.messages[0] != "Arthur: what's for dinner?" {
		t.Fatalf("handler saw %v", h.messages)
	}
	sent := api.sentTexts()
	if len(sent) != 1 || sent[0] != "Very good, sir." {
		t.Fatalf("sent = %v", sent)
	}
}

func TestHandleUpdateIgnoresUnknownUsers(t *testing.T) {
	t.Parallel()

	h := &stubHandler{reply: "should never be sent"}
	bot, api := newTestBot(t, h)

	bot.handleUpdate(context.Background(), privateUpdate(999, "let me in"))

	if len(h.messages) != 0 {
		t.Fatalf("handler invoked for unlisted user: %v", h.messages)
	}
	if sent := api.sentTexts(); len(sent) != 0 {
		t.Fatalf("reply sent to unlisted user: %v", sent)
	}
}

func TestHandleUpdateIgnoresGroupChats(t *testing.T) {
	t.Parallel()

	h := &stubHandler{reply: "nope"}
	bot, api := newTestBot(t, h)

	update := privateUpdate(7, "hello from the group")
	update.Message.Chat.Type = "group"
	bot.handleUpdate(context.Background(), update)

	if len(h.messages) != 0 || len(api.sentTexts()) != 0 {
		t.Fatal("group chat message must be ignored")
	}
}

func TestHandleUpdateCommands(t *testing.T) {
	t.Parallel()

	h := &stubHandler{today: "Today: dentist.", week: "Week: quiet."}
	bot, api := newTestBot(t, h)

	bot.handleUpdate(context.Background(), privateUpdate(7, "/start"))
	bot.handleUpdate(context.Background(), privateUpdate(7, "/today"))
	bot.handleUpdate(context.Background(), privateUpdate(7, "/week"))

	sent := api.sentTexts()
	if len(sent) != 3 {
		t.Fatalf("sent %d messages, want 3: %v", len(sent), sent)
	}
	if !strings.Contains(sent[0], "Majordomo") {
		t.Fatalf("/start reply = %q", sent[0])
	}
	if sent[1] != "Today: dentist." || sent[2] != "Week: quiet." {
		t.Fatalf("command replies = %v", sent[1:])
	}
	if len(h.messages) != 0 {
		t.Fatalf("commands must not hit HandleMessage: %v", h.messages)
	}
}

func TestReplySplitsLongMessages(t *testing.T) {
	t.Parallel()

	h := &stubHandler{reply: strings.Repeat("a", maxMessageLength+100)}
	bot, api := newTestBot(t, h)

	bot.handleUpdate(context.Background(), privateUpdate(7, "tell me everything"))

	sent := api.sentTexts()
	if len(sent) != 2 {
		t.Fatalf("sent %d chunks, want 2", len(sent))
	}
	for _, chunk := range sent {
		if len(chunk) > maxMessageLength {
			t.Fatalf("chunk of %d bytes exceeds limit", len(chunk))
		}
	}
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"empty", "", 10, nil},
		{"fits", "hello", 10, []string{"hello"}},
		{"hard split", "aaaaabbbbb", 5, []string{"aaaaa", "bbbbb"}},
		{"newline preferred", "one\ntwo\nthree", 8, []string{"one\ntwo", "three"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitMessage(tc.text, tc.limit)
			if len(got) != len(tc.want) {
				t.Fatalf("chunks = %q, want %q", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("chunk %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestNewBotValidation(t *testing.T) {
	t.Parallel()

	client := &Client{baseURL: "https://api.telegram.org", token: "t", httpClient: http.DefaultClient}
	if _, err := NewBot(Config{AllowedUserIDs: []int64{1}}, nil, &stubHandler{}); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewBot(Config{AllowedUserIDs: []int64{1}}, client, nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
	if _, err := NewBot(Config{}, client, &stubHandler{}); err == nil {
		t.Fatal("expected error for empty allow-list")
	}
}
