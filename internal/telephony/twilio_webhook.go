package telephony

import (
	"net/http"
	"strings"
)

// TwilioVoiceForm captures the subset of voice webhook fields we care about.
// Twilio sends application/x-www-form-urlencoded by default; any extra fields
// are ignored.
//
// Keep it minimal and provider-adapter-only. Dialogue decisions are not made here.

type TwilioVoiceForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	Direction  string
	CallStatus string

	// SpeechResult is set by the live speech recognition capture (Gather).
	SpeechResult string

	// RecordingUrl is set when a recorded segment is ready (Record).
	RecordingUrl string
}

func ParseTwilioVoiceForm(r *http.Request) (TwilioVoiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioVoiceForm{}, err
	}
	f := TwilioVoiceForm{
		CallSid:      r.PostFormValue("CallSid"),
		AccountSid:   r.PostFormValue("AccountSid"),
		From:         normalizePhone(r.PostFormValue("From")),
		To:           normalizePhone(r.PostFormValue("To")),
		Direction:    r.PostFormValue("Direction"),
		CallStatus:   r.PostFormValue("CallStatus"),
		SpeechResult: r.PostFormValue("SpeechResult"),
		RecordingUrl: r.PostFormValue("RecordingUrl"),
	}
	return f, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return s
}

// UserNumber resolves which side of the call is the coached user. On calls we
// placed (outbound-api and variants) the user is the dialed To number; on
// inbound calls the user dialed us, so it's the From number.
func (f TwilioVoiceForm) UserNumber() string {
	if strings.HasPrefix(f.Direction, "outbound") {
		return f.To
	}
	return f.From
}
