package telephony

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPlaceCallPostsFormAndParsesSid(t *testing.T) {
	var gotPath, gotAuth string
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = map[string]string{
			"To":     r.PostFormValue("To"),
			"From":   r.PostFormValue("From"),
			"Url":    r.PostFormValue("Url"),
			"Method": r.PostFormValue("Method"),
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"CA123","status":"queued"}`))
	}))
	defer srv.Close()

	client := NewTwilioClient("AC1", "secret")
	client.BaseURL = srv.URL

	res, err := client.PlaceCall(context.Background(), PlaceCallRequest{
		To:          "+15550001111",
		From:        "+15559998888",
		CallbackURL: "https://coach.example.com/webhooks/twilio/voice",
	})
	if err != nil {
		t.Fatalf("place call: %v", err)
	}
	if res.ProviderCallID != "CA123" || res.Status != "queued" {
		t.Fatalf("result = %+v", res)
	}
	if gotPath != "/2010-04-01/Accounts/AC1/Calls.json" {
		t.Fatalf("path = %q", gotPath)
	}
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("AC1:secret"))
	if gotAuth != wantAuth {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotForm["To"] != "+15550001111" || gotForm["From"] != "+15559998888" || gotForm["Method"] != "POST" {
		t.Fatalf("form = %v", gotForm)
	}
	if gotForm["Url"] != "https://coach.example.com/webhooks/twilio/voice" {
		t.Fatalf("callback url = %q", gotForm["Url"])
	}
}

func TestPlaceCallSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"The 'To' number is not valid","code":21211}`))
	}))
	defer srv.Close()

	client := NewTwilioClient("AC1", "secret")
	client.BaseURL = srv.URL

	_, err := client.PlaceCall(context.Background(), PlaceCallRequest{To: "bad", From: "+15559998888", CallbackURL: "https://x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "21211") {
		t.Fatalf("error should carry the provider code: %v", err)
	}
}

func TestFetchRecordingAppendsWavAndAuthenticates(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("RIFFdata"))
	}))
	defer srv.Close()

	client := NewTwilioClient("AC1", "secret")

	audio, err := client.FetchRecording(context.Background(), srv.URL+"/recordings/RE1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(audio) != "RIFFdata" {
		t.Fatalf("audio = %q", audio)
	}
	if gotPath != "/recordings/RE1.wav" {
		t.Fatalf("path = %q, want .wav suffix", gotPath)
	}
	if gotAuth == "" {
		t.Fatalf("recording fetch must be authenticated")
	}
}

func TestParseTwilioVoiceFormUserNumber(t *testing.T) {
	cases := []struct {
		direction string
		want      string
	}{
		{"outbound-api", "+15550001111"},
		{"outbound-dial", "+15550001111"},
		{"inbound", "+15552223333"},
		{"", "+15552223333"},
	}
	for _, tc := range cases {
		f := TwilioVoiceForm{From: "+15552223333", To: "+15550001111", Direction: tc.direction}
		if got := f.UserNumber(); got != tc.want {
			t.Fatalf("direction %q: user = %q, want %q", tc.direction, got, tc.want)
		}
	}
}
