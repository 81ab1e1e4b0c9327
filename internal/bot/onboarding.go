package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/services"
	"github.com/tbourn/go-delivery-bot/internal/session"
)

// BirthdayLayout is the accepted date of birth format (dd.mm.yyyy).
const BirthdayLayout = "02.01.2006"

const maxNameRunes = 100

var (
	phoneRE = regexp.MustCompile(`^(\+?375|80|8|\+3|37)[\d ]{7,}$`)
	spaceRE = regexp.MustCompile(`\s+`)
	titler  = cases.Title(language.Russian)
)

// ValidPhone reports whether s looks like a Belarusian phone number.
func ValidPhone(s string) bool {
	return phoneRE.MatchString(strings.TrimSpace(s))
}

// NormalizeName collapses whitespace and title-cases every word. It returns
// "" for input without letters or longer than the profile column allows.
func NormalizeName(s string) string {
	s = spaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" || utf8.RuneCountInString(s) > maxNameRunes || !strings.ContainsFunc(s, unicode.IsLetter) {
		return ""
	}
	return titler.String(s)
}

// ParseBirthday parses a dd.mm.yyyy date that is not in the future relative
// to now.
func ParseBirthday(s string, now time.Time) (time.Time, bool) {
	d, err := time.Parse(BirthdayLayout, strings.TrimSpace(s))
	if err != nil || d.After(now) {
		return time.Time{}, false
	}
	return d, true
}

// start is /start: unknown users are registered and onboarded, known users
// get the main menu.
func (m *Machine) start(ctx context.Context, t *turn) ([]Reply, error) {
	ev := t.ev
	_, err := m.Users.Get(ctx, ev.UserID)
	if errors.Is(err, services.ErrUserNotFound) {
		_, err = m.Users.Register(ctx, &domain.User{
			ID:        ev.UserID,
			Username:  ev.Username,
			FirstName: ev.FirstName,
			LastName:  ev.LastName,
		})
		if err != nil {
			return nil, err
		}
		t.log.Info().Msg("new user")
		t.sess.Reset()
		t.sess.State = session.StateName
		return []Reply{
			m.text(ev.ChatID, m.Labels.Texts.Welcome),
			{ChatID: ev.ChatID, Text: m.Labels.Texts.AskName, RemoveKeyboard: true},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return m.mainMenu(t, m.Labels.Texts.SelectMenu), nil
}

// onInitial treats input after a reset as a main-menu choice when it is one,
// and shows the menu otherwise.
func (m *Machine) onInitial(ctx context.Context, t *turn) ([]Reply, error) {
	b := m.Labels.Buttons
	switch txt := t.ev.Text; {
	case txt == b.Cart || txt == b.Settings || m.Catalog.IsCategory(txt):
		if _, err := m.Users.Get(ctx, t.ev.UserID); err == nil {
			t.sess.State = session.StateChoosingCategory
			return m.onCategory(ctx, t)
		}
	}
	return m.start(ctx, t)
}

// mainMenu resets the dialogue to the category list.
func (m *Machine) mainMenu(t *turn, prompt string) []Reply {
	t.sess.Reset()
	t.sess.State = session.StateChoosingCategory
	return []Reply{m.withKeyboard(t.ev.ChatID, prompt, m.Keys.Main(m.Catalog.Categories()))}
}

func (m *Machine) onName(ctx context.Context, t *turn) ([]Reply, error) {
	name := NormalizeName(t.ev.Text)
	if name == "" {
		return []Reply{{ChatID: t.ev.ChatID, Text: m.Labels.Texts.AskName, RemoveKeyboard: true}}, nil
	}
	if err := m.saveName(ctx, t.ev.UserID, name); err != nil {
		return nil, err
	}
	t.sess.State = session.StatePhone
	return []Reply{m.withKeyboard(t.ev.ChatID, m.Labels.Texts.AskPhone, m.Keys.Phone())}, nil
}

// saveName stores the first word as the first name and the rest as the last
// name.
func (m *Machine) saveName(ctx context.Context, userID int64, name string) error {
	first, last, _ := strings.Cut(name, " ")
	if err := m.Users.UpdateField(ctx, userID, "first_name", first); err != nil {
		return err
	}
	return m.Users.UpdateField(ctx, userID, "last_name", last)
}

// phoneFrom extracts the phone from a shared contact or typed text.
func phoneFrom(ev Event) (string, bool) {
	if ev.Contact != nil {
		if p := strings.TrimSpace(ev.Contact.PhoneNumber); p != "" {
			if !strings.HasPrefix(p, "+") && p[0] >= '1' && p[0] <= '9' {
				p = "+" + p
			}
			return p, true
		}
	}
	p := spaceRE.ReplaceAllString(strings.TrimSpace(ev.Text), " ")
	return p, ValidPhone(p)
}

func (m *Machine) onPhone(ctx context.Context, t *turn) ([]Reply, error) {
	phone, ok := phoneFrom(t.ev)
	if !ok {
		return []Reply{m.withKeyboard(t.ev.ChatID, m.Labels.Texts.AskPhone, m.Keys.Phone())}, nil
	}
	if err := m.Users.UpdateField(ctx, t.ev.UserID, "phone", phone); err != nil {
		return nil, err
	}
	name := t.ev.FirstName
	if u, err := m.Users.Get(ctx, t.ev.UserID); err == nil && u.FirstName != "" {
		name = u.FirstName
	}
	t.sess.State = session.StateBirthday
	return []Reply{m.withKeyboard(t.ev.ChatID, fmt.Sprintf(m.Labels.Texts.AskBirthday, name), m.Keys.Skip())}, nil
}

func (m *Machine) onBirthday(ctx context.Context, t *turn) ([]Reply, error) {
	if t.ev.Text == m.Labels.Buttons.Skip {
		return m.mainMenu(t, m.Labels.Texts.SelectMenu), nil
	}
	dob, ok := ParseBirthday(t.ev.Text, m.now())
	if !ok {
		return []Reply{m.withKeyboard(t.ev.ChatID, m.Labels.Texts.BadBirthday, m.Keys.Skip())}, nil
	}
	if err := m.Users.UpdateField(ctx, t.ev.UserID, "date_of_birth", dob); err != nil {
		return nil, err
	}
	return m.mainMenu(t, m.Labels.Texts.SelectMenu), nil
}

func (m *Machine) openSettings(t *turn) []Reply {
	t.sess.Reset()
	t.sess.State = session.StateSettings
	return []Reply{m.withKeyboard(t.ev.ChatID, m.Labels.Texts.SettingsTitle, m.Keys.Settings())}
}

func (m *Machine) onSettings(_ context.Context, t *turn) ([]Reply, error) {
	b := m.Labels.Buttons
	switch t.ev.Text {
	case b.ChangeName:
		t.sess.State = session.StateSettingsName
		return []Reply{{ChatID: t.ev.ChatID, Text: m.Labels.Texts.EnterName, RemoveKeyboard: true}}, nil
	case b.ChangePhone:
		t.sess.State = session.StateSettingsPhone
		return []Reply{m.withKeyboard(t.ev.ChatID, m.Labels.Texts.AskPhone, m.Keys.Phone())}, nil
	case b.Back:
		return m.mainMenu(t, m.Labels.Texts.SelectMenu), nil
	default:
		return ignore(t, "unknown settings option")
	}
}

func (m *Machine) onSettingsName(ctx context.Context, t *turn) ([]Reply, error) {
	name := NormalizeName(t.ev.Text)
	if name == "" {
		return []Reply{{ChatID: t.ev.ChatID, Text: m.Labels.Texts.EnterName, RemoveKeyboard: true}}, nil
	}
	if err := m.saveName(ctx, t.ev.UserID, name); err != nil {
		return nil, err
	}
	return m.openSettings(t), nil
}

func (m *Machine) onSettingsPhone(ctx context.Context, t *turn) ([]Reply, error) {
	phone, ok := phoneFrom(t.ev)
	if !ok {
		return []Reply{m.withKeyboard(t.ev.ChatID, m.Labels.Texts.AskPhone, m.Keys.Phone())}, nil
	}
	if err := m.Users.UpdateField(ctx, t.ev.UserID, "phone", phone); err != nil {
		return nil, err
	}
	return m.openSettings(t), nil
}
