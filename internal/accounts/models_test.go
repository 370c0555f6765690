package accounts

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+15551234567", "+15551234567"},
		{"555 123 4567", "+15551234567"},
		{"(555) 123-4567", "+15551234567"},
		{"+44 20 7946 0958", "+442079460958"},
	}
	for _, c := range cases {
		got, err := NormalizePhone(c.in)
		if err != nil {
			t.Fatalf("NormalizePhone(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	for _, bad := range []string{"", "555-CALL-ME", "+1"} {
		if _, err := NormalizePhone(bad); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("NormalizePhone(%q): expected invalid argument, got %v", bad, err)
		}
	}
}

func TestParsePersonality(t *testing.T) {
	for _, s := range []string{"strict", "Sarcastic", " supportive "} {
		if _, err := ParsePersonality(s); err != nil {
			t.Fatalf("ParsePersonality(%q): %v", s, err)
		}
	}
	if _, err := ParsePersonality("drill-sergeant"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestListDue_SetSemantics(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()

	seed := []Account{
		{ID: "due", PhoneNumber: "+15550000001", IntervalMinutes: 60, Active: true, NextDueAt: now.Add(-time.Second)},
		{ID: "due-exact", PhoneNumber: "+15550000002", IntervalMinutes: 60, Active: true, NextDueAt: now},
		{ID: "future", PhoneNumber: "+15550000003", IntervalMinutes: 60, Active: true, NextDueAt: now.Add(time.Second)},
		{ID: "inactive-past", PhoneNumber: "+15550000004", IntervalMinutes: 60, Active: false, NextDueAt: now.Add(-time.Hour)},
	}
	for _, a := range seed {
		if err := repo.Create(context.Background(), a); err != nil {
			t.Fatalf("seed %s: %v", a.ID, err)
		}
	}

	due, err := repo.ListDue(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got := map[string]bool{}
	for _, a := range due {
		got[a.ID] = true
	}
	if len(got) != 2 || !got["due"] || !got["due-exact"] {
		t.Fatalf("unexpected due set: %v", got)
	}
}
