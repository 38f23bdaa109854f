package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/custodian/internal/delivery"
	"github.com/user/custodian/internal/digest"
	"github.com/user/custodian/internal/seal"
	"github.com/user/custodian/internal/state"
	"github.com/user/custodian/internal/transport"
	"github.com/user/custodian/internal/types"
)

type fakeBot struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	fileURL string
	fileIDs []string
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeBot) StopReceivingUpdates() {}

func (f *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	f.fileIDs = append(f.fileIDs, fileID)
	return f.fileURL, nil
}

func (f *fakeBot) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeBot) photos() []tgbotapi.PhotoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

func command(chatID int64, text string) *tgbotapi.Message {
	cmd, _, _ := strings.Cut(text, " ")
	return &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func setup(t *testing.T) (*Adapter, *fakeBot, *types.CaseRecord) {
	t.Helper()
	store := state.NewCaseStore(t.TempDir())
	rec := &types.CaseRecord{
		ID:        "c0ffee00-0000-4000-8000-000000000001",
		Name:      "harbour",
		CreatedAt: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
		Report:    "REPORT",
		Seal:      digest.SumString("harbour seal"),
	}
	if err := store.Put(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	bot := &fakeBot{}
	return newAdapter(bot, store, nil, 0), bot, rec
}

func lastText(t *testing.T, bot *fakeBot) string {
	t.Helper()
	texts := bot.texts()
	if len(texts) == 0 {
		t.Fatal("no text message sent")
	}
	return texts[len(texts)-1]
}

func TestVerifyCommand(t *testing.T) {
	a, bot, rec := setup(t)
	ctx := context.Background()

	a.handleMessage(ctx, command(1, "/verify "+rec.Seal))
	if got := lastText(t, bot); !strings.HasPrefix(got, "VERIFIED") {
		t.Errorf("match reply = %q", got)
	}

	a.handleMessage(ctx, command(1, "/verify "+digest.SumString("other")))
	if got := lastText(t, bot); got != seal.MismatchWarning {
		t.Errorf("mismatch reply = %q", got)
	}

	a.handleMessage(ctx, command(1, "/verify"))
	if got := lastText(t, bot); !strings.HasPrefix(got, "Usage") {
		t.Errorf("empty reply = %q", got)
	}
}

func TestPlainSealIsVerified(t *testing.T) {
	a, bot, rec := setup(t)
	a.handleMessage(context.Background(), &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: rec.Seal})
	if got := lastText(t, bot); !strings.HasPrefix(got, "VERIFIED") {
		t.Errorf("reply = %q", got)
	}
}

func TestAlteredSealIsNotVerified(t *testing.T) {
	a, bot, rec := setup(t)
	ctx := context.Background()

	a.handleMessage(ctx, command(1, "/verify "+strings.ToUpper(rec.Seal)))
	if got := lastText(t, bot); got != seal.MismatchWarning {
		t.Errorf("uppercased /verify reply = %q", got)
	}

	a.handleMessage(ctx, &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "  " + strings.ToUpper(rec.Seal) + "\n"})
	if got := lastText(t, bot); strings.HasPrefix(got, "VERIFIED") {
		t.Errorf("altered plain text verified: %q", got)
	}
}

func TestCasesCommand(t *testing.T) {
	a, bot, rec := setup(t)
	a.handleMessage(context.Background(), command(1, "/cases"))
	got := lastText(t, bot)
	if !strings.Contains(got, "Sealed cases: 1") || !strings.Contains(got, rec.ID.Short()) || !strings.Contains(got, "harbour") {
		t.Errorf("reply = %q", got)
	}
}

func TestSealCommandSendsQR(t *testing.T) {
	a, bot, rec := setup(t)
	a.handleMessage(context.Background(), command(7, "/seal c0ffee"))

	photos := bot.photos()
	if len(photos) != 1 {
		t.Fatalf("expected 1 photo, got %d", len(photos))
	}
	fb, ok := photos[0].File.(tgbotapi.FileBytes)
	if !ok {
		t.Fatalf("photo file type %T", photos[0].File)
	}
	decoded, err := transport.DecodeBytes(fb.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	if decoded != rec.Seal {
		t.Errorf("QR carries %q, want %q", decoded, rec.Seal)
	}
}

func TestPhotoIsDecodedAndVerified(t *testing.T) {
	a, bot, rec := setup(t)
	png, err := transport.EncodePNG(rec.Seal, transport.DefaultSize)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))
	defer srv.Close()
	bot.fileURL = srv.URL

	a.handleMessage(context.Background(), &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 1},
		Photo: []tgbotapi.PhotoSize{{FileID: "thumb"}, {FileID: "full"}},
	})

	if got := lastText(t, bot); !strings.HasPrefix(got, "VERIFIED") {
		t.Errorf("reply = %q", got)
	}
	if len(bot.fileIDs) != 1 || bot.fileIDs[0] != "full" {
		t.Errorf("fetched %v, want largest size only", bot.fileIDs)
	}
}

func TestAskWithoutAssistant(t *testing.T) {
	a, bot, _ := setup(t)
	a.handleMessage(context.Background(), command(1, "/ask c0ffee what happened?"))
	if got := lastText(t, bot); !strings.Contains(got, "UNAVAILABLE") {
		t.Errorf("reply = %q", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	a, bot, _ := setup(t)
	a.handleMessage(context.Background(), command(1, "/status"))
	if got := lastText(t, bot); !strings.HasPrefix(got, "Unknown command") {
		t.Errorf("reply = %q", got)
	}
}

func TestDeliveryHandler(t *testing.T) {
	a, bot, rec := setup(t)
	n := delivery.Notice{CaseID: rec.ID, CaseName: rec.Name, Seal: rec.Seal}

	if err := a.Handler()(context.Background(), "telegram:42", n); err != nil {
		t.Fatal(err)
	}
	if got := lastText(t, bot); !strings.HasPrefix(got, "Case sealed: "+string(rec.ID)) {
		t.Errorf("notice = %q", got)
	}
	if len(bot.photos()) != 1 {
		t.Errorf("expected seal QR after notice")
	}

	if err := a.Handler()(context.Background(), "telegram:42", delivery.Notice{CaseID: rec.ID, Alert: "audit failed"}); err != nil {
		t.Fatal(err)
	}
	if len(bot.photos()) != 1 {
		t.Errorf("alerts must not carry a seal QR")
	}

	if err := a.Handler()(context.Background(), "telegram:", n); err == nil {
		t.Error("expected error without default chat")
	}
	if err := a.Handler()(context.Background(), "telegram:abc", n); err == nil {
		t.Error("expected error for non-numeric chat")
	}
}

func TestSplitMessage(t *testing.T) {
	short := "Hello world"
	parts := splitMessage(short)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0] != short {
		t.Errorf("expected %q, got %q", short, parts[0])
	}
}

func TestSplitMessageLong(t *testing.T) {
	long := strings.Repeat("a", 5000)
	parts := splitMessage(long)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage {
		t.Errorf("expected first part length %d, got %d", maxTelegramMessage, len(parts[0]))
	}
}
