package accounts

import (
	"fmt"
	"strings"
	"time"
)

// Account is the per-user scheduling record.
//
// Scheduling invariant: NextDueAt is only meaningful while Active is true.
// An inactive account keeps its stale NextDueAt and the due-scan must ignore it.
//
// NOTE: This is a domain model only. Provider-specific state (live call ids,
// turn history) lives in the conversation session table and is never persisted.
type Account struct {
	ID          string `json:"id" db:"id"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`

	// IntervalMinutes is the gap between accountability calls.
	IntervalMinutes int `json:"interval_minutes" db:"interval_minutes"`

	Personality Personality `json:"personality" db:"personality"`

	Active    bool      `json:"active" db:"active"`
	NextDueAt time.Time `json:"next_due_at" db:"next_due_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Interval returns the call interval as a duration.
func (a Account) Interval() time.Duration {
	return time.Duration(a.IntervalMinutes) * time.Minute
}

// Personality selects the coaching style used for greetings, fallbacks
// and generated replies.
type Personality string

const (
	PersonalityStrict     Personality = "strict"
	PersonalitySarcastic  Personality = "sarcastic"
	PersonalitySupportive Personality = "supportive"
)

// DefaultPersonality is used when an inbound call cannot be matched to an account.
const DefaultPersonality = PersonalitySupportive

func ParsePersonality(s string) (Personality, error) {
	switch Personality(strings.ToLower(strings.TrimSpace(s))) {
	case PersonalityStrict:
		return PersonalityStrict, nil
	case PersonalitySarcastic:
		return PersonalitySarcastic, nil
	case PersonalitySupportive:
		return PersonalitySupportive, nil
	default:
		return "", fmt.Errorf("%w: unknown personality %q", ErrInvalidArgument, s)
	}
}

// NormalizePhone strips formatting characters and defaults to a +1 country
// code when none is present, mirroring the registration form behavior.
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "", fmt.Errorf("%w: phone number required", ErrInvalidArgument)
	}
	if !strings.HasPrefix(s, "+") {
		s = "+1" + s
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: phone number %q contains non-digits", ErrInvalidArgument, raw)
		}
	}
	if len(s) < 8 {
		return "", fmt.Errorf("%w: phone number %q too short", ErrInvalidArgument, raw)
	}
	return s, nil
}
