// Package telegram connects the bot to the Telegram Bot API: it long-polls
// updates, normalizes them into bot.Event, and turns bot.Reply values into
// API calls under an outbound rate limit.
package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-delivery-bot/internal/bot"
	"github.com/tbourn/go-delivery-bot/internal/callback"
	"github.com/tbourn/go-delivery-bot/internal/config"
	"github.com/tbourn/go-delivery-bot/internal/keyboard"
	"github.com/tbourn/go-delivery-bot/internal/observability"
	"github.com/tbourn/go-delivery-bot/internal/session"
	"github.com/tbourn/go-delivery-bot/internal/sysutil"
)

// ErrNoAdminChat is returned by NotifyAdmin when ADMIN_CHAT_ID is unset.
var ErrNoAdminChat = errors.New("admin chat not configured")

// API is the part of *tgbotapi.BotAPI the client uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Dispatcher accepts normalized events. *bot.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev bot.Event) error
}

// Client is the Telegram transport. It implements bot.Sender,
// services.Notifier and services.CustomerNotifier.
type Client struct {
	api         API
	limiter     *rate.Limiter
	adminChatID int64
	pollTimeout int
}

// Dial authenticates with the bot token and returns a Client.
func Dial(cfg config.BotConfig) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = cfg.Debug
	log.Info().Str("bot", sysutil.FirstNonEmpty(api.Self.UserName, api.Self.FirstName)).Msg("telegram authorized")
	return New(api, cfg), nil
}

// New wraps an existing API.
func New(api API, cfg config.BotConfig) *Client {
	limit := rate.Inf
	if cfg.SendRPS > 0 {
		limit = rate.Limit(cfg.SendRPS)
	}
	burst := cfg.SendBurst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 60
	}
	return &Client{
		api:         api,
		limiter:     rate.NewLimiter(limit, burst),
		adminChatID: cfg.AdminChatID,
		pollTimeout: timeout,
	}
}

// Run long-polls updates and hands them to d until ctx is done or d is
// closed. Callback queries are acknowledged on receipt.
func (c *Client) Run(ctx context.Context, d Dispatcher) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout
	updates := c.api.GetUpdatesChan(u)
	defer c.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := Normalize(up)
			if !ok {
				continue
			}
			if ev.CallbackID != "" {
				c.ack(ctx, ev.CallbackID)
			}
			if err := d.Dispatch(ctx, ev); err != nil {
				if errors.Is(err, bot.ErrClosed) || errors.Is(err, context.Canceled) {
					return nil
				}
				log.Error().Err(err).Int64("user_id", ev.UserID).Msg("dispatch update")
			}
		}
	}
}

func (c *Client) ack(ctx context.Context, id string) {
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		observability.SendError("answerCallbackQuery")
		log.Warn().Err(err).Msg("answer callback")
	}
}

// Normalize converts an update into a bot.Event. Updates without a sender
// (channel posts, edits) are skipped.
func Normalize(up tgbotapi.Update) (bot.Event, bool) {
	if cq := up.CallbackQuery; cq != nil {
		if cq.From == nil {
			return bot.Event{}, false
		}
		ev := bot.Event{UserID: cq.From.ID, ChatID: cq.From.ID, CallbackID: cq.ID}
		fillUser(&ev, cq.From)
		if cq.Message != nil {
			ev.MessageID = cq.Message.MessageID
			if cq.Message.Chat != nil {
				ev.ChatID = cq.Message.Chat.ID
			}
		}
		d, err := callback.Parse(cq.Data)
		if err != nil {
			log.Warn().Err(err).Str("data", cq.Data).Msg("bad callback data")
		}
		ev.Callback = &d
		return ev, true
	}

	msg := up.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return bot.Event{}, false
	}
	ev := bot.Event{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
	}
	fillUser(&ev, msg.From)
	if msg.IsCommand() {
		ev.Command = msg.Command()
		ev.CommandArgs = msg.CommandArguments()
	}
	if msg.Location != nil {
		ev.Location = &session.Location{Latitude: msg.Location.Latitude, Longitude: msg.Location.Longitude}
	}
	if msg.Contact != nil {
		ev.Contact = &bot.Contact{PhoneNumber: msg.Contact.PhoneNumber, UserID: msg.Contact.UserID}
	}
	return ev, true
}

func fillUser(ev *bot.Event, u *tgbotapi.User) {
	ev.Username = u.UserName
	ev.FirstName = u.FirstName
	ev.LastName = u.LastName
}

// NotifyAdmin posts text to the administrative chat.
func (c *Client) NotifyAdmin(ctx context.Context, text string, kb *keyboard.Inline) error {
	if c.adminChatID == 0 {
		return ErrNoAdminChat
	}
	return c.Send(ctx, bot.Reply{ChatID: c.adminChatID, Text: text, ParseMode: bot.ParseMarkdown, Inline: kb})
}

// NotifyUser posts text to a customer's private chat, whose id equals the
// user id.
func (c *Client) NotifyUser(ctx context.Context, userID int64, text string) error {
	return c.Send(ctx, bot.Reply{ChatID: userID, Text: text, ParseMode: bot.ParseMarkdown})
}

// Send performs one reply. Markdown that Telegram refuses to parse is
// resent as plain text; a photo that cannot be sent falls back to a text
// message with the same caption.
func (c *Client) Send(ctx context.Context, r bot.Reply) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	switch {
	case r.DeleteMessageID != 0:
		return c.request("deleteMessage", tgbotapi.NewDeleteMessage(r.ChatID, r.DeleteMessageID))

	case r.EditMessageID != 0:
		markup := inlineMarkup(r.Inline)
		return c.request("editMessageReplyMarkup", tgbotapi.NewEditMessageReplyMarkup(r.ChatID, r.EditMessageID, markup))

	case r.Document != nil:
		doc := tgbotapi.NewDocument(r.ChatID, tgbotapi.FileBytes{Name: r.Document.Name, Bytes: r.Document.Data})
		doc.Caption = r.Text
		return c.send("sendDocument", doc)

	case r.PhotoURL != "":
		photo := tgbotapi.NewPhoto(r.ChatID, tgbotapi.FileURL(r.PhotoURL))
		photo.Caption = r.Text
		photo.ParseMode = r.ParseMode
		photo.ReplyMarkup = replyMarkup(r)
		if err := c.send("sendPhoto", photo); err != nil {
			log.Warn().Err(err).Str("url", r.PhotoURL).Msg("photo failed; sending text")
			r.PhotoURL = ""
			return c.sendText(r)
		}
		return nil
	}
	return c.sendText(r)
}

func (c *Client) sendText(r bot.Reply) error {
	msg := tgbotapi.NewMessage(r.ChatID, r.Text)
	msg.ParseMode = r.ParseMode
	msg.ReplyMarkup = replyMarkup(r)
	err := c.send("sendMessage", msg)
	if err != nil && msg.ParseMode != "" {
		log.Warn().Err(err).Int64("chat_id", r.ChatID).Msg("retrying without markdown")
		msg.ParseMode = ""
		err = c.send("sendMessage", msg)
	}
	return err
}

func (c *Client) send(method string, m tgbotapi.Chattable) error {
	if _, err := c.api.Send(m); err != nil {
		observability.SendError(method)
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	return nil
}

// request is used for methods whose result is not a Message.
func (c *Client) request(method string, m tgbotapi.Chattable) error {
	if _, err := c.api.Request(m); err != nil {
		observability.SendError(method)
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	return nil
}

// replyMarkup picks the keyboard for a message. RemoveKeyboard wins over
// Keyboard, which wins over Inline.
func replyMarkup(r bot.Reply) any {
	switch {
	case r.RemoveKeyboard:
		return tgbotapi.NewRemoveKeyboard(true)
	case r.Keyboard != nil && len(r.Keyboard.Rows) > 0:
		return replyKeyboard(*r.Keyboard)
	case r.Inline != nil && len(r.Inline.Rows) > 0:
		return inlineMarkup(r.Inline)
	}
	return nil
}

func replyKeyboard(k keyboard.Keyboard) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(k.Rows))
	for _, row := range k.Rows {
		btns := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, b := range row {
			switch {
			case b.RequestLocation:
				btns = append(btns, tgbotapi.NewKeyboardButtonLocation(b.Text))
			case b.RequestContact:
				btns = append(btns, tgbotapi.NewKeyboardButtonContact(b.Text))
			default:
				btns = append(btns, tgbotapi.NewKeyboardButton(b.Text))
			}
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(btns...))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

func inlineMarkup(k *keyboard.Inline) tgbotapi.InlineKeyboardMarkup {
	if k == nil {
		return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(k.Rows))
	for _, row := range k.Rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btns...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
