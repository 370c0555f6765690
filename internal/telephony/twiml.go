package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
)

// TwiML is a minimal Twilio Markup Language response builder.
// It intentionally avoids any provider SDK dependency.
//
// Only include verbs we need at the adapter boundary: speak text, capture the
// next utterance (live speech or a recorded segment), hang up.

// DefaultVoice is the speech-synthesis voice used for every spoken line.
const DefaultVoice = "Polly.Matthew-Neural"

// Capture timing, matching the provider-side bounds the dialogue expects:
// short no-speech windows end the call instead of looping.
const (
	gatherTimeoutSeconds       = 5
	gatherSpeechTimeoutSeconds = 2
	recordMaxLengthSeconds     = 30
	recordTimeoutSeconds       = 3
)

// VoiceResponse describes one webhook reply: lines to speak, then at most one
// capture instruction, then the terminal fallback.
type VoiceResponse struct {
	// Say lines are spoken in order before any capture.
	Say []string

	// GatherAction, when set, captures live speech and posts the transcript there.
	GatherAction string

	// RecordAction, when set, records a segment and posts its reference there.
	RecordAction string

	// NoInputSay is spoken before hanging up when a capture times out.
	// Ignored when no capture is requested.
	NoInputSay string
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Timeout       int      `xml:"timeout,attr"`
	SpeechTimeout int      `xml:"speechTimeout,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
}

type twimlRecord struct {
	XMLName   xml.Name `xml:"Record"`
	Action    string   `xml:"action,attr"`
	Method    string   `xml:"method,attr"`
	MaxLength int      `xml:"maxLength,attr"`
	Timeout   int      `xml:"timeout,attr"`
	PlayBeep  bool     `xml:"playBeep,attr"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// RenderTwiML maps a VoiceResponse to TwiML. Every rendering ends in either a
// capture instruction (with a spoken no-input fallback) or a hangup, so the
// caller never leaves the user in silence.
func RenderTwiML(res VoiceResponse) (string, error) {
	if res.GatherAction != "" && res.RecordAction != "" {
		return "", errors.New("telephony: at most one capture instruction per response")
	}

	var r twimlResponse
	for _, line := range res.Say {
		if line == "" {
			continue
		}
		r.Verbs = append(r.Verbs, twimlSay{Voice: DefaultVoice, Text: line})
	}

	switch {
	case res.GatherAction != "":
		r.Verbs = append(r.Verbs, twimlGather{
			Input:         "speech",
			Timeout:       gatherTimeoutSeconds,
			SpeechTimeout: gatherSpeechTimeoutSeconds,
			Action:        res.GatherAction,
			Method:        "POST",
		})
	case res.RecordAction != "":
		r.Verbs = append(r.Verbs, twimlRecord{
			Action:    res.RecordAction,
			Method:    "POST",
			MaxLength: recordMaxLengthSeconds,
			Timeout:   recordTimeoutSeconds,
			PlayBeep:  true,
		})
	}

	if res.GatherAction != "" || res.RecordAction != "" {
		if res.NoInputSay != "" {
			r.Verbs = append(r.Verbs, twimlSay{Voice: DefaultVoice, Text: res.NoInputSay})
		}
	}
	r.Verbs = append(r.Verbs, twimlHangup{})

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
