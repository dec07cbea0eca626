// Package bot – telegram transport adapter.
//
// The adapter owns the long-poll loop. Every update is deduplicated against
// the processed-updates table first, because long polling redelivers updates
// after a crash between receive and offset advance. Messages are then handed
// to per-sender workers so that two messages from the same sender are always
// processed in arrival order while different senders proceed in parallel.
package bot

import (
	"context"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/carbazar/go-car-market/internal/repo"
)

// senderQueueSize bounds the per-sender mailbox; a full queue drops the
// message rather than blocking the poll loop.
const senderQueueSize = 16

// Telegram runs the bot against the Telegram Bot API.
type Telegram struct {
	API    *tgbotapi.BotAPI
	Router *Router
	Coord  *repo.Coordinator
	Log    zerolog.Logger
	// PollTimeout is the long-poll timeout in seconds.
	PollTimeout int

	mu      sync.Mutex
	workers map[string]chan IncomingMessage
	wg      sync.WaitGroup
}

// NewTelegram constructs the transport adapter.
func NewTelegram(api *tgbotapi.BotAPI, router *Router, coord *repo.Coordinator, log zerolog.Logger, pollTimeout int) *Telegram {
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	return &Telegram{
		API:         api,
		Router:      router,
		Coord:       coord,
		Log:         log,
		PollTimeout: pollTimeout,
		workers:     make(map[string]chan IncomingMessage),
	}
}

// Run polls for updates until ctx is cancelled, then waits for the per-sender
// workers to finish their in-flight message before returning. Messages still
// queued at shutdown are dropped; long polling redelivers their updates on
// the next start.
func (t *Telegram) Run(ctx context.Context) {
	t.Log.Info().Str("account", t.API.Self.UserName).Msg("bot authorized")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.PollTimeout
	updates := t.API.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.API.StopReceivingUpdates()
			t.shutdown()
			return
		case update, ok := <-updates:
			if !ok {
				t.shutdown()
				return
			}
			t.dispatch(ctx, update)
		}
	}
}

// dispatch dedups one update and routes it to its sender's worker.
func (t *Telegram) dispatch(ctx context.Context, update tgbotapi.Update) {
	msg, ok := normalize(update)
	if !ok {
		return
	}

	fresh, err := repo.MarkUpdateProcessed(ctx, t.Coord.DB(), update.UpdateID)
	if err != nil {
		t.Log.Error().Err(err).Int("update_id", update.UpdateID).Msg("recording update")
		return
	}
	if !fresh {
		t.Log.Debug().Int("update_id", update.UpdateID).Msg("duplicate update skipped")
		return
	}

	t.mu.Lock()
	queue, ok := t.workers[msg.Sender]
	if !ok {
		queue = make(chan IncomingMessage, senderQueueSize)
		t.workers[msg.Sender] = queue
		t.wg.Add(1)
		go t.senderWorker(ctx, queue)
	}
	t.mu.Unlock()

	select {
	case queue <- msg:
	default:
		t.Log.Warn().Str("sender", msg.Sender).Msg("sender queue full, message dropped")
	}
}

// senderWorker processes one sender's messages in order. The reply goes to
// the chat each message arrived in, not to a chat pinned at worker start.
func (t *Telegram) senderWorker(ctx context.Context, queue chan IncomingMessage) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-queue:
			reply := t.Router.Handle(ctx, msg)
			t.send(msg.ChatID, reply)
		}
	}
}

// send delivers one reply, photos first so the text lands last in the chat.
func (t *Telegram) send(chatID int64, reply OutgoingReply) {
	for _, ref := range reply.Attachments {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(ref))
		if _, err := t.API.Send(photo); err != nil {
			t.Log.Error().Err(err).Msg("sending photo")
		}
	}
	if reply.Text == "" {
		return
	}
	if _, err := t.API.Send(tgbotapi.NewMessage(chatID, reply.Text)); err != nil {
		t.Log.Error().Err(err).Msg("sending reply")
	}
}

func (t *Telegram) shutdown() {
	t.wg.Wait()
	t.Log.Info().Msg("bot stopped")
}

// normalize turns a raw update into the router's message shape. Only regular
// messages from a known author are routed.
func normalize(update tgbotapi.Update) (IncomingMessage, bool) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return IncomingMessage{}, false
	}
	msg := IncomingMessage{
		Sender:     strconv.FormatInt(m.From.ID, 10),
		Username:   m.From.UserName,
		TelegramID: m.From.ID,
		ChatID:     m.Chat.ID,
		Text:       m.Text,
		Kind:       KindText,
	}
	if len(m.Photo) > 0 {
		// The last size is the largest rendition of the photo.
		msg.MediaRef = m.Photo[len(m.Photo)-1].FileID
		msg.Kind = KindMedia
		if msg.Text == "" {
			msg.Text = m.Caption
		}
	}
	return msg, true
}
