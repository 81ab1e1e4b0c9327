package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-delivery-bot/internal/bot"
	"github.com/tbourn/go-delivery-bot/internal/callback"
	"github.com/tbourn/go-delivery-bot/internal/config"
	"github.com/tbourn/go-delivery-bot/internal/keyboard"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
	// sendErr fails Send calls while it returns a non-nil error.
	sendErr func(tgbotapi.Chattable) error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if f.sendErr != nil {
		if err := f.sendErr(c); err != nil {
			return tgbotapi.Message{}, err
		}
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []bot.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev bot.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func command(text string, n int) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 3,
		From:      &tgbotapi.User{ID: 42, FirstName: "Ivan", UserName: "ivan"},
		Chat:      &tgbotapi.Chat{ID: 42},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}},
	}
}

func TestNormalizeMessage(t *testing.T) {
	ev, ok := Normalize(tgbotapi.Update{Message: command("/reply 7 hello there", 6)})
	require.True(t, ok)
	require.Equal(t, int64(42), ev.UserID)
	require.Equal(t, int64(42), ev.ChatID)
	require.Equal(t, "reply", ev.Command)
	require.Equal(t, "7 hello there", ev.CommandArgs)
	require.Equal(t, "ivan", ev.Username)

	loc := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 1},
		Chat:     &tgbotapi.Chat{ID: 1},
		Location: &tgbotapi.Location{Latitude: 53.9, Longitude: 27.56},
		Contact:  &tgbotapi.Contact{PhoneNumber: "375291234567", UserID: 1},
	}
	ev, ok = Normalize(tgbotapi.Update{Message: loc})
	require.True(t, ok)
	require.Equal(t, 53.9, ev.Location.Latitude)
	require.Equal(t, "375291234567", ev.Contact.PhoneNumber)
	require.Empty(t, ev.Command)

	_, ok = Normalize(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}})
	require.False(t, ok)
	_, ok = Normalize(tgbotapi.Update{})
	require.False(t, ok)
}

func TestNormalizeCallback(t *testing.T) {
	up := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: -100}},
		Data:    callback.DeliveryTime(45, 42),
	}}
	ev, ok := Normalize(up)
	require.True(t, ok)
	require.Equal(t, "cb1", ev.CallbackID)
	require.Equal(t, int64(-100), ev.ChatID)
	require.Equal(t, 9, ev.MessageID)
	require.Equal(t, callback.KindDeliveryTime, ev.Callback.Kind)
	require.Equal(t, 45, ev.Callback.Minutes)
	require.Equal(t, int64(42), ev.Callback.UserID)

	up.CallbackQuery.Data = "order_confirm_x"
	ev, ok = Normalize(up)
	require.True(t, ok)
	require.Equal(t, callback.KindUnknown, ev.Callback.Kind)
}

func TestSendTextWithKeyboard(t *testing.T) {
	api := newFakeAPI()
	c := New(api, config.BotConfig{AdminChatID: -100})

	kb := keyboard.Keyboard{Rows: [][]keyboard.Button{
		{{Text: "Pizza"}, {Text: "Sushi"}},
		{{Text: "Send location", RequestLocation: true}},
	}}
	require.NoError(t, c.Send(context.Background(), bot.Reply{ChatID: 1, Text: "hi", Keyboard: &kb}))

	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	require.Equal(t, "hi", msg.Text)
	markup, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.Keyboard, 2)
	require.True(t, markup.Keyboard[1][0].RequestLocation)
}

func TestSendRetriesPlainTextOnMarkdownError(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = func(c tgbotapi.Chattable) error {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ParseMode != "" {
			return errors.New("Bad Request: can't parse entities")
		}
		return nil
	}
	c := New(api, config.BotConfig{})
	require.NoError(t, c.Send(context.Background(), bot.Reply{ChatID: 1, Text: "a_b", ParseMode: bot.ParseMarkdown}))
	require.Len(t, api.sent, 2)
	require.Empty(t, api.sent[1].(tgbotapi.MessageConfig).ParseMode)
}

func TestSendPhotoFallsBackToText(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = func(c tgbotapi.Chattable) error {
		if _, ok := c.(tgbotapi.PhotoConfig); ok {
			return errors.New("wrong file identifier")
		}
		return nil
	}
	c := New(api, config.BotConfig{})
	require.NoError(t, c.Send(context.Background(), bot.Reply{ChatID: 1, Text: "card", PhotoURL: "https://x/y.jpg"}))
	require.Len(t, api.sent, 2)
	require.Equal(t, "card", api.sent[1].(tgbotapi.MessageConfig).Text)
}

func TestSendDeleteAndEditUseRequest(t *testing.T) {
	api := newFakeAPI()
	c := New(api, config.BotConfig{})
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, bot.Reply{ChatID: 1, DeleteMessageID: 5}))
	inline := keyboard.OrderDecision(3, "OK", "Cancel")
	require.NoError(t, c.Send(ctx, bot.Reply{ChatID: 1, EditMessageID: 6, Inline: &inline}))

	require.Empty(t, api.sent)
	require.Len(t, api.requests, 2)
	del := api.requests[0].(tgbotapi.DeleteMessageConfig)
	require.Equal(t, 5, del.MessageID)
	edit := api.requests[1].(tgbotapi.EditMessageReplyMarkupConfig)
	require.Equal(t, callback.OrderConfirm(3), *edit.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}

func TestNotifyAdmin(t *testing.T) {
	api := newFakeAPI()
	ctx := context.Background()

	require.ErrorIs(t, New(api, config.BotConfig{}).NotifyAdmin(ctx, "x", nil), ErrNoAdminChat)

	c := New(api, config.BotConfig{AdminChatID: -100})
	kb := keyboard.DeliveryTimes(42, []int{30, 45}, func(n int) string { return "m" })
	require.NoError(t, c.NotifyAdmin(ctx, "new order", &kb))
	msg := api.sent[0].(tgbotapi.MessageConfig)
	require.Equal(t, int64(-100), msg.ChatID)
	require.Equal(t, bot.ParseMarkdown, msg.ParseMode)
	_, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
}

func TestRunAcksCallbacksAndDispatches(t *testing.T) {
	api := newFakeAPI()
	c := New(api, config.BotConfig{})
	d := &recordingDispatcher{}

	api.updates <- tgbotapi.Update{Message: command("/start", 6)}
	api.updates <- tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb", From: &tgbotapi.User{ID: 1}, Data: callback.OrderCancel(4),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, d) }()

	require.Eventually(t, func() bool { return d.count() == 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.True(t, api.stopped)
	require.Len(t, api.requests, 1)
	require.Equal(t, "cb", api.requests[0].(tgbotapi.CallbackConfig).CallbackQueryID)
	require.Equal(t, "start", d.events[0].Command)
	require.Equal(t, callback.KindOrderCancel, d.events[1].Callback.Kind)
}

func TestNotifyUser(t *testing.T) {
	api := newFakeAPI()
	c := New(api, config.BotConfig{AdminChatID: -100})
	require.NoError(t, c.NotifyUser(context.Background(), 42, "order confirmed"))
	require.Len(t, api.sent, 1)
	msg := api.sent[0].(tgbotapi.MessageConfig)
	require.Equal(t, int64(42), msg.ChatID)
	require.Equal(t, "order confirmed", msg.Text)
}
