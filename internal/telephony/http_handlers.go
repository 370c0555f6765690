package telephony

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"voicecoach/internal/conversation"
	"voicecoach/pkg/logger"
)

// Webhook paths, registered in the router and echoed back to the provider as
// capture actions. Twilio resolves these relative to the webhook base URL.
const (
	VoiceWebhookPath     = "/webhooks/twilio/voice"
	SpeechWebhookPath    = "/webhooks/twilio/speech"
	RecordingWebhookPath = "/webhooks/twilio/recording"
	StatusWebhookPath    = "/webhooks/twilio/status"
)

// DialogueEngine is the conversation surface the webhook adapter drives.
type DialogueEngine interface {
	CallConnected(ctx context.Context, ev conversation.CallEvent) conversation.Step
	SpeechReceived(ctx context.Context, ev conversation.CallEvent) conversation.Step
	RecordingReady(ctx context.Context, ev conversation.CallEvent) conversation.Step
	CallEnded(ctx context.Context, callID string)
}

// WebhookHandler translates Twilio voice webhooks into engine events and
// engine steps back into TwiML. It holds no call state of its own.
type WebhookHandler struct {
	engine DialogueEngine
}

func NewWebhookHandler(engine DialogueEngine) *WebhookHandler {
	return &WebhookHandler{engine: engine}
}

func (h *WebhookHandler) Register(r gin.IRouter) {
	r.POST(VoiceWebhookPath, h.Voice)
	r.POST(SpeechWebhookPath, h.Speech)
	r.POST(RecordingWebhookPath, h.Recording)
	r.POST(StatusWebhookPath, h.Status)
}

// Voice handles the call-connected callback.
func (h *WebhookHandler) Voice(c *gin.Context) {
	form, ok := h.parse(c)
	if !ok {
		return
	}
	step := h.engine.CallConnected(c.Request.Context(), eventFrom(form))
	h.respond(c, step)
}

// Speech handles the live speech recognition callback.
func (h *WebhookHandler) Speech(c *gin.Context) {
	form, ok := h.parse(c)
	if !ok {
		return
	}
	step := h.engine.SpeechReceived(c.Request.Context(), eventFrom(form))
	h.respond(c, step)
}

// Recording handles the recorded-segment callback.
func (h *WebhookHandler) Recording(c *gin.Context) {
	form, ok := h.parse(c)
	if !ok {
		return
	}
	step := h.engine.RecordingReady(c.Request.Context(), eventFrom(form))
	h.respond(c, step)
}

// Status handles terminal call status callbacks (completed, failed, busy,
// no-answer). No TwiML is spoken on a call that is already over.
func (h *WebhookHandler) Status(c *gin.Context) {
	form, err := ParseTwilioVoiceForm(c.Request)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	switch form.CallStatus {
	case "completed", "failed", "busy", "no-answer", "canceled":
		h.engine.CallEnded(c.Request.Context(), form.CallSid)
	}
	c.Status(http.StatusNoContent)
}

func (h *WebhookHandler) parse(c *gin.Context) (TwilioVoiceForm, bool) {
	form, err := ParseTwilioVoiceForm(c.Request)
	if err != nil || form.CallSid == "" {
		logger.FromGin(c).Warn("malformed voice webhook", "err", err)
		h.speakErrorAndHangup(c)
		return TwilioVoiceForm{}, false
	}
	return form, true
}

func eventFrom(f TwilioVoiceForm) conversation.CallEvent {
	return conversation.CallEvent{
		CallID:       f.CallSid,
		PhoneNumber:  f.UserNumber(),
		Transcript:   f.SpeechResult,
		RecordingURL: f.RecordingUrl,
	}
}

// respond renders the engine's step as TwiML. Rendering failures still end
// with a spoken apology; an empty webhook response drops the call silently.
func (h *WebhookHandler) respond(c *gin.Context, step conversation.Step) {
	res := VoiceResponse{Say: step.Utterances}
	switch step.Capture {
	case conversation.CaptureSpeech:
		res.GatherAction = SpeechWebhookPath
		res.NoInputSay = step.NoInput
	case conversation.CaptureRecording:
		res.RecordAction = RecordingWebhookPath
		res.NoInputSay = step.NoInput
	}

	body, err := RenderTwiML(res)
	if err != nil {
		logger.FromGin(c).Error("twiml rendering failed", "err", err)
		h.speakErrorAndHangup(c)
		return
	}
	c.Data(http.StatusOK, "application/xml", []byte(body))
}

func (h *WebhookHandler) speakErrorAndHangup(c *gin.Context) {
	body, err := RenderTwiML(VoiceResponse{Say: []string{conversation.InternalErrorApology}})
	if err != nil {
		// Should be unreachable: a say-then-hangup response always renders.
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml", []byte(body))
}
