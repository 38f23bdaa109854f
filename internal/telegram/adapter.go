// Package telegram exposes read-only case verification over a Telegram bot
// and delivers sealed-case notices to chats.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/custodian/internal/assistant"
	"github.com/user/custodian/internal/delivery"
	"github.com/user/custodian/internal/digest"
	"github.com/user/custodian/internal/gateway"
	"github.com/user/custodian/internal/logging"
	"github.com/user/custodian/internal/seal"
	"github.com/user/custodian/internal/state"
	"github.com/user/custodian/internal/transport"
	"github.com/user/custodian/internal/types"
)

const (
	maxTelegramMessage = 4096
	// TargetPrefix routes delivery targets such as "telegram:12345".
	TargetPrefix = "telegram:"
	maxListed    = 20
)

// botAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

// Adapter answers verification requests from Telegram chats.
type Adapter struct {
	bot        botAPI
	store      types.CaseStore
	assistant  *assistant.Assistant
	httpClient *http.Client
	defaultTo  int64
	log        *slog.Logger
}

// New creates a Telegram adapter. defaultChat receives notices delivered to
// the bare "telegram:" target; ai may be nil.
func New(token string, store types.CaseStore, ai *assistant.Assistant, defaultChat int64) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return newAdapter(bot, store, ai, defaultChat), nil
}

func newAdapter(bot botAPI, store types.CaseStore, ai *assistant.Assistant, defaultChat int64) *Adapter {
	return &Adapter{
		bot:        bot,
		store:      store,
		assistant:  ai,
		httpClient: http.DefaultClient,
		defaultTo:  defaultChat,
		log:        logging.New("telegram"),
	}
}

// Start begins long-polling for Telegram updates. It blocks until ctx is done.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch {
	case msg.IsCommand():
		a.handleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		a.sendText(chatID, a.verifyPhoto(ctx, msg.Photo))
	case digest.Valid(msg.Text):
		a.sendText(chatID, a.verify(ctx, msg.Text))
	case msg.Text != "":
		a.sendText(chatID, "Send a 128-character seal, a photo of a seal QR code, or /help.")
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		a.sendText(chatID, "Custodian verification bot.\n"+
			"/verify <seal> - check a seal against stored cases\n"+
			"/cases - list sealed cases\n"+
			"/seal <case> - receive a case seal as a QR code\n"+
			"/ask <case> <question> - ask the assistant about a sealed case\n"+
			"You can also send a photo of a seal QR code.")

	case "verify":
		if args == "" {
			a.sendText(chatID, "Usage: /verify <seal>")
			return
		}
		// The candidate is compared exactly as typed.
		a.sendText(chatID, a.verify(ctx, msg.CommandArguments()))

	case "cases":
		a.sendText(chatID, a.listCases(ctx))

	case "seal":
		rec, err := state.Find(ctx, a.store, args)
		if err != nil {
			a.sendText(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		if err := a.sendSeal(chatID, rec.ID, rec.Seal); err != nil {
			a.log.Error("send seal", "case", rec.ID, "error", err)
			a.sendText(chatID, "Error sending seal image.")
		}

	case "ask":
		ref, question, _ := strings.Cut(args, " ")
		if ref == "" || strings.TrimSpace(question) == "" {
			a.sendText(chatID, "Usage: /ask <case> <question>")
			return
		}
		a.sendText(chatID, a.ask(ctx, ref, strings.TrimSpace(question)))

	default:
		a.sendText(chatID, "Unknown command. Available: /start, /verify, /cases, /seal, /ask")
	}
}

func (a *Adapter) verify(ctx context.Context, candidate string) string {
	cases, err := a.store.GetAll(ctx)
	if err != nil {
		a.log.Error("load cases", "error", err)
		return "Error loading stored cases."
	}
	return seal.Verify(candidate, cases).Message
}

func (a *Adapter) verifyPhoto(ctx context.Context, photos []tgbotapi.PhotoSize) string {
	largest := photos[len(photos)-1]
	url, err := a.bot.GetFileDirectURL(largest.FileID)
	if err != nil {
		a.log.Error("resolve photo", "error", err)
		return "Error fetching photo."
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "Error fetching photo."
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.log.Error("download photo", "error", err)
		return "Error fetching photo."
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Error fetching photo (status %d).", resp.StatusCode)
	}

	candidate, err := transport.Decode(resp.Body)
	if err != nil {
		return "No seal QR code found in photo."
	}
	return a.verify(ctx, candidate)
}

func (a *Adapter) listCases(ctx context.Context) string {
	cases, err := a.store.GetAll(ctx)
	if err != nil {
		a.log.Error("load cases", "error", err)
		return "Error loading stored cases."
	}
	if len(cases) == 0 {
		return "No sealed cases."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Sealed cases: %d\n", len(cases))
	for i, rec := range cases {
		if i == maxListed {
			fmt.Fprintf(&b, "... and %d more", len(cases)-maxListed)
			break
		}
		fmt.Fprintf(&b, "%s %s  %s  %s...\n", rec.ID.Short(), rec.CreatedAt.UTC().Format("2006-01-02"), rec.Name, rec.Seal[:16])
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Adapter) ask(ctx context.Context, ref, question string) string {
	rec, err := state.Find(ctx, a.store, ref)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	answer, err := a.assistant.Ask(ctx, rec, nil, question)
	if err != nil {
		return fmt.Sprintf("Assistant: %v", err)
	}
	return answer
}

func (a *Adapter) sendSeal(chatID int64, id types.CaseID, sealValue string) error {
	png, err := transport.EncodePNG(sealValue, transport.DefaultSize)
	if err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: string(id) + ".png", Bytes: png})
	photo.Caption = fmt.Sprintf("Seal for case %s", id)
	_, err = a.bot.Send(photo)
	return err
}

// Handler delivers sealed-case notices as a text message followed by the
// seal QR code. Register it under TargetPrefix.
func (a *Adapter) Handler() delivery.Handler {
	return func(_ context.Context, target string, n delivery.Notice) error {
		chatID := a.defaultTo
		if rest := strings.TrimPrefix(target, TargetPrefix); rest != "" {
			id, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				return gateway.Permanent(fmt.Errorf("invalid telegram target %q: %w", target, err))
			}
			chatID = id
		}
		if chatID == 0 {
			return gateway.Permanent(fmt.Errorf("no chat for target %q", target))
		}
		if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, n.Text())); err != nil {
			return fmt.Errorf("send notice: %w", err)
		}
		if n.Alert != "" {
			return nil
		}
		return a.sendSeal(chatID, n.CaseID, n.Seal)
	}
}

func (a *Adapter) sendText(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			a.log.Error("send message", "chat", chatID, "error", err)
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
