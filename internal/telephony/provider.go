package telephony

import (
	"context"
)

// CallPlacer defines the provider-agnostic outbound call interface used by
// the scheduler.
//
// Rules:
// - No provider SDK or raw HTTP calls outside telephony adapters.
// - Keep request/response types provider-agnostic.
type CallPlacer interface {
	Name() string
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)
}

// RecordingFetcher downloads a recorded audio segment from the provider.
type RecordingFetcher interface {
	FetchRecording(ctx context.Context, recordingURL string) ([]byte, error)
}

// PlaceCallRequest asks the provider to dial To from From and drive the call
// through the webhook at CallbackURL.
type PlaceCallRequest struct {
	To   string `json:"to"`
	From string `json:"from"`

	// CallbackURL receives the call-connected webhook once the call is answered.
	CallbackURL string `json:"callback_url"`

	// StatusCallbackURL, when set, receives terminal call status events
	// (completed, failed, busy, no-answer).
	StatusCallbackURL string `json:"status_callback_url,omitempty"`
}

type PlaceCallResult struct {
	// ProviderCallID is the provider's unique identifier for the placed call.
	ProviderCallID string `json:"provider_call_id"`

	Status string `json:"status,omitempty"`
}
