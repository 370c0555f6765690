package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioClient places calls and fetches recordings via the Twilio REST API.
// It intentionally avoids any provider SDK dependency; the surface we need is
// one authenticated form POST and one authenticated GET.

const defaultTwilioBaseURL = "https://api.twilio.com"

type TwilioClient struct {
	accountSID string
	authToken  string

	// BaseURL is overridable for tests.
	BaseURL string

	httpClient *http.Client
}

func NewTwilioClient(accountSID, authToken string) *TwilioClient {
	return &TwilioClient{
		accountSID: accountSID,
		authToken:  authToken,
		BaseURL:    defaultTwilioBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *TwilioClient) Name() string { return "twilio" }

type twilioCallResponse struct {
	Sid     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PlaceCall POSTs /2010-04-01/Accounts/{sid}/Calls.json.
func (c *TwilioClient) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	if req.To == "" || req.From == "" || req.CallbackURL == "" {
		return PlaceCallResult{}, errors.New("telephony: to, from and callback_url are required")
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Url", req.CallbackURL)
	form.Set("Method", http.MethodPost)
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
		form.Set("StatusCallbackMethod", http.MethodPost)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", strings.TrimRight(c.BaseURL, "/"), c.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return PlaceCallResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return PlaceCallResult{}, fmt.Errorf("telephony: place call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PlaceCallResult{}, fmt.Errorf("telephony: read place call response: %w", err)
	}

	var out twilioCallResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return PlaceCallResult{}, fmt.Errorf("telephony: decode place call response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PlaceCallResult{}, fmt.Errorf("telephony: place call rejected (status %d, code %d): %s", resp.StatusCode, out.Code, out.Message)
	}
	if out.Sid == "" {
		return PlaceCallResult{}, errors.New("telephony: place call response missing sid")
	}
	return PlaceCallResult{ProviderCallID: out.Sid, Status: out.Status}, nil
}

// FetchRecording downloads the recorded audio. Twilio serves the WAV rendition
// at the recording URL with a .wav suffix, behind basic auth.
func (c *TwilioClient) FetchRecording(ctx context.Context, recordingURL string) ([]byte, error) {
	if strings.TrimSpace(recordingURL) == "" {
		return nil, errors.New("telephony: recording url required")
	}
	audioURL := recordingURL
	if !strings.HasSuffix(audioURL, ".wav") {
		audioURL += ".wav"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("telephony: fetch recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telephony: fetch recording failed with status %d", resp.StatusCode)
	}
	// 30s max segments at telephony bitrates stay well under this cap.
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}
