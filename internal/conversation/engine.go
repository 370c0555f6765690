package conversation

import (
	"context"
	"strings"

	"voicecoach/internal/accounts"
	"voicecoach/internal/dialogue"
	"voicecoach/pkg/logger"
)

// AccountResolver looks up the schedule record owning a phone number. The
// record is re-resolved on every turn since it may change state mid-call.
type AccountResolver interface {
	GetByPhone(ctx context.Context, phone string) (accounts.Account, error)
}

// PolicyGateway produces the next spoken reply and the end-of-call decision.
// Implementations must degrade to a fallback reply instead of failing.
type PolicyGateway interface {
	Generate(ctx context.Context, utterance string, personality accounts.Personality, history []dialogue.Message) dialogue.Reply
}

// Transcriber resolves a recorded audio segment to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, languageHint string) (string, error)
}

// RecordingFetcher downloads recorded audio from the provider.
type RecordingFetcher interface {
	FetchRecording(ctx context.Context, recordingURL string) ([]byte, error)
}

// SlotReleaser frees the outbound-call slot bound to a call id when the call
// ends. Implementations must treat ids that hold no slot (inbound calls,
// repeated terminal events) as a no-op. Optional.
type SlotReleaser interface {
	Release(ctx context.Context, callID string) error
}

// CaptureMode tells the calling channel how to obtain the next utterance.
type CaptureMode string

const (
	CaptureNone      CaptureMode = ""
	CaptureSpeech    CaptureMode = "speech"
	CaptureRecording CaptureMode = "recording"
)

// CallEvent is a provider callback normalized to engine terms.
type CallEvent struct {
	CallID      string
	PhoneNumber string

	// Transcript is set on live speech recognition callbacks.
	Transcript string

	// RecordingURL is set when a recorded segment is ready.
	RecordingURL string
}

// Step is the engine's decision for one callback: lines to speak, then either
// a capture instruction for the next utterance or a hangup. Every failure
// path still yields spoken lines — never a silent drop.
type Step struct {
	Utterances []string
	Capture    CaptureMode

	// NoInput is spoken before hanging up if the capture times out.
	NoInput string

	Hangup bool
}

func speakAndHangup(lines ...string) Step {
	return Step{Utterances: lines, Capture: CaptureNone, Hangup: true}
}

// Engine drives the per-call dialogue state machine across webhook callbacks.
// Each callback carries no session object; state lives in the session table
// keyed by the provider call id.
type Engine struct {
	sessions    *Table
	accounts    AccountResolver
	policy      PolicyGateway
	transcriber Transcriber
	recordings  RecordingFetcher
	slots       SlotReleaser

	languageHint string
}

func NewEngine(sessions *Table, resolver AccountResolver, policy PolicyGateway, transcriber Transcriber, recordings RecordingFetcher, slots SlotReleaser) *Engine {
	return &Engine{
		sessions:     sessions,
		accounts:     resolver,
		policy:       policy,
		transcriber:  transcriber,
		recordings:   recordings,
		slots:        slots,
		languageHint: "en",
	}
}

// CallConnected handles the call-answered callback: greet in the account's
// personality and instruct the channel to capture the first utterance.
func (e *Engine) CallConnected(ctx context.Context, ev CallEvent) Step {
	personality := e.resolvePersonality(ctx, ev.PhoneNumber)

	s := e.sessions.getOrCreate(ev.CallID, ev.PhoneNumber)
	s.mu.Lock()
	defer s.mu.Unlock()
	e.sessions.touch(s)
	s.state = StateAwaitingSpeech

	greeting := genericGreeting
	if personality != "" {
		greeting = greetingFor(personality)
	}
	return Step{
		Utterances: []string{greeting},
		Capture:    CaptureSpeech,
		NoInput:    noInputLine,
	}
}

// SpeechReceived handles a live-recognition transcript. A session is created
// on the fly when absent: the callback can win the race against our own
// placement bookkeeping.
func (e *Engine) SpeechReceived(ctx context.Context, ev CallEvent) Step {
	s := e.sessions.getOrCreate(ev.CallID, ev.PhoneNumber)
	s.mu.Lock()
	defer s.mu.Unlock()
	e.sessions.touch(s)

	transcript := strings.TrimSpace(ev.Transcript)
	if transcript == "" {
		return e.endLocked(ctx, s, timeoutApology)
	}
	return e.processTurnLocked(ctx, s, transcript, CaptureSpeech)
}

// RecordingReady handles a recorded-segment callback: download, transcribe,
// then run the same turn processing as the live path.
func (e *Engine) RecordingReady(ctx context.Context, ev CallEvent) Step {
	s := e.sessions.getOrCreate(ev.CallID, ev.PhoneNumber)
	s.mu.Lock()
	defer s.mu.Unlock()
	e.sessions.touch(s)

	if strings.TrimSpace(ev.RecordingURL) == "" {
		return e.endLocked(ctx, s, recordingApology)
	}
	audio, err := e.recordings.FetchRecording(ctx, ev.RecordingURL)
	if err != nil {
		logger.From(ctx).Error("recording download failed", "call_id", s.callID, "err", err)
		return e.endLocked(ctx, s, processingApology)
	}
	text, err := e.transcriber.Transcribe(ctx, audio, e.languageHint)
	if err != nil {
		logger.From(ctx).Error("transcription failed", "call_id", s.callID, "err", err)
		return e.endLocked(ctx, s, understandApology)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return e.endLocked(ctx, s, timeoutApology)
	}
	return e.processTurnLocked(ctx, s, text, CaptureRecording)
}

// CallEnded handles a provider-reported terminal event (hangup, failure,
// busy, no-answer). The slot release must not depend on a session existing:
// an unanswered outbound call never produces a voice webhook, so its only
// terminal signal is this one.
func (e *Engine) CallEnded(ctx context.Context, callID string) {
	t := e.sessions
	t.mu.Lock()
	s, ok := t.sessions[callID]
	t.mu.Unlock()
	if ok {
		s.mu.Lock()
		s.state = StateEnded
		t.remove(callID)
		s.mu.Unlock()
	}
	e.releaseSlot(ctx, callID)
}

// processTurnLocked appends the user's utterance, consults the policy
// gateway with the bounded history window, appends the reply and decides
// whether the call continues. Caller holds s.mu.
func (e *Engine) processTurnLocked(ctx context.Context, s *session, utterance string, capture CaptureMode) Step {
	s.state = StateProcessing

	history := make([]dialogue.Message, 0, dialogue.HistoryWindow)
	turns := s.turns
	if len(turns) > dialogue.HistoryWindow {
		turns = turns[len(turns)-dialogue.HistoryWindow:]
	}
	for _, t := range turns {
		history = append(history, dialogue.Message{Role: string(t.Role), Content: t.Text})
	}

	s.turns = append(s.turns, Turn{Role: RoleUser, Text: utterance})

	// Re-resolve the account every turn; it may have been deactivated or
	// deleted mid-call, in which case the default personality carries on.
	personality := e.resolvePersonality(ctx, s.phoneNumber)
	if personality == "" {
		personality = accounts.DefaultPersonality
	}

	reply := e.policy.Generate(ctx, utterance, personality, history)
	s.turns = append(s.turns, Turn{Role: RoleAssistant, Text: reply.Text})

	if reply.ShouldEnd {
		return e.endLocked(ctx, s, reply.Text, closingLine)
	}

	s.state = StateAwaitingSpeech
	return Step{
		Utterances: []string{reply.Text},
		Capture:    capture,
		NoInput:    noInputLine,
	}
}

// endLocked transitions to the terminal state, removes the session so the
// call id can be reused cleanly, and frees the outbound slot.
func (e *Engine) endLocked(ctx context.Context, s *session, lines ...string) Step {
	s.state = StateEnded
	e.sessions.remove(s.callID)
	e.releaseSlot(ctx, s.callID)
	return speakAndHangup(lines...)
}

func (e *Engine) releaseSlot(ctx context.Context, callID string) {
	if e.slots == nil {
		return
	}
	if err := e.slots.Release(ctx, callID); err != nil {
		logger.From(ctx).Warn("call slot release failed", "call_id", callID, "err", err)
	}
}

// resolvePersonality returns the account's personality, or "" when the phone
// number is unknown (callers fall back to the generic script).
func (e *Engine) resolvePersonality(ctx context.Context, phone string) accounts.Personality {
	if phone == "" {
		return ""
	}
	a, err := e.accounts.GetByPhone(ctx, phone)
	if err != nil {
		logger.From(ctx).Warn("no account for caller, using generic dialogue", "phone", phone)
		return ""
	}
	return a.Personality
}
