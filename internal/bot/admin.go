package bot

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-delivery-bot/internal/repo"
	"github.com/tbourn/go-delivery-bot/internal/services"
)

// Commands accepted from the administrative chat only.
const (
	cmdReply     = "reply"
	cmdReplyAll  = "replyall"
	cmdGetReport = "getreport"
)

const (
	usageReply    = "usage: /reply <user_id> <text>"
	usageReplyAll = "usage: /replyall <text>"
)

func isAdminCommand(cmd string) bool {
	return cmd == cmdReply || cmd == cmdReplyAll || cmd == cmdGetReport
}

func (m *Machine) onAdminCommand(ctx context.Context, ev Event) ([]Reply, error) {
	lg := log.With().Str("command", ev.Command).Logger()
	switch ev.Command {
	case cmdReply:
		idText, text, _ := strings.Cut(strings.TrimSpace(ev.CommandArgs), " ")
		to, err := strconv.ParseInt(idText, 10, 64)
		text = strings.TrimSpace(text)
		if err != nil || to == 0 || text == "" {
			return []Reply{m.text(ev.ChatID, usageReply)}, nil
		}
		lg.Info().Int64("to", to).Msg("operator reply")
		return []Reply{m.text(to, text)}, nil

	case cmdReplyAll:
		text := strings.TrimSpace(ev.CommandArgs)
		if text == "" {
			return []Reply{m.text(ev.ChatID, usageReplyAll)}, nil
		}
		users, err := m.Users.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Reply, 0, len(users))
		for _, u := range users {
			r := m.text(u.ID, text)
			r.Bulk = true
			out = append(out, r)
		}
		lg.Info().Int("recipients", len(out)).Msg("broadcast")
		return out, nil

	case cmdGetReport:
		orders, err := m.Orders.All(ctx, repo.OrderFilter{})
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := services.WriteOrdersCSV(&buf, orders); err != nil {
			return nil, err
		}
		lg.Info().Int("orders", len(orders)).Msg("report")
		return []Reply{{ChatID: ev.ChatID, Document: &Document{Name: "orders.csv", Data: buf.Bytes()}}}, nil
	}
	return nil, nil
}
