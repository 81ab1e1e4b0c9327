package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2024, 5, 1, h, m, 0, 0, time.UTC)
}

func TestWorkingHours_Contains(t *testing.T) {
	day, err := ParseWorkingHours("10:00-22:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cases := []struct {
		t    time.Time
		want bool
	}{
		{at(9, 59), false},
		{at(10, 0), true},
		{at(21, 59), true},
		{at(22, 0), false},
	}
	for _, c := range cases {
		if got := day.Contains(c.t); got != c.want {
			t.Fatalf("Contains(%s) = %v, want %v", c.t.Format("15:04"), got, c.want)
		}
	}

	night, _ := ParseWorkingHours("18:00-02:00")
	if !night.Contains(at(23, 30)) || !night.Contains(at(1, 0)) || night.Contains(at(12, 0)) {
		t.Fatalf("overnight window misbehaves")
	}

	always, _ := ParseWorkingHours("00:00-00:00")
	if !always.Contains(at(4, 0)) {
		t.Fatalf("equal bounds should mean always open")
	}
}

func TestParseWorkingHours_Errors(t *testing.T) {
	for _, s := range []string{"", "10:00", "25:00-22:00", "10:00-xx"} {
		if _, err := ParseWorkingHours(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
	w, _ := ParseWorkingHours(" 8:05 - 17:30 ")
	if w.String() != "08:05-17:30" {
		t.Fatalf("String() = %q", w.String())
	}
}

func TestLoadLabels_DefaultsAndOverride(t *testing.T) {
	def, err := LoadLabels("")
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if def.Buttons.Back == "" || def.Texts.EmptyCart == "" {
		t.Fatalf("embedded labels incomplete: %+v", def)
	}

	path := filepath.Join(t.TempDir(), "labels.yaml")
	if err := os.WriteFile(path, []byte("buttons:\n  back: \"Back\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	l, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if l.Buttons.Back != "Back" || l.Buttons.Cart != def.Buttons.Cart {
		t.Fatalf("override should replace only listed keys: %+v", l.Buttons)
	}

	if err := os.WriteFile(path, []byte("buttons:\n  cart: \"\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLabels(path); err == nil {
		t.Fatalf("empty button label should fail validation")
	}

	if _, err := LoadLabels(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing override file should fail")
	}
}
