package config

import (
	"testing"
	"time"
)

func validBase() Config {
	return Config{
		App:    AppConfig{Env: "local", Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "voicecoach"},
		Twilio: TwilioConfig{AccountSID: "AC123", AuthToken: "tok", FromNumber: "+15550001111", WebhookBaseURL: "https://coach.example.com"},
		OpenAI: OpenAIConfig{APIKey: "sk-test"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_AppliesCallDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Calls.SchedulerTick != time.Minute {
		t.Fatalf("expected 1m tick default, got %v", c.Calls.SchedulerTick)
	}
	if c.Calls.MaxConcurrent != 10 {
		t.Fatalf("expected cap default 10, got %d", c.Calls.MaxConcurrent)
	}
	if c.Calls.DialogueTimeout != 10*time.Second || c.Calls.TranscribeTimeout != 10*time.Second {
		t.Fatalf("expected 10s gateway timeouts, got %v %v", c.Calls.DialogueTimeout, c.Calls.TranscribeTimeout)
	}
	if c.Calls.SessionIdleTTL != 15*time.Minute {
		t.Fatalf("expected 15m idle ttl, got %v", c.Calls.SessionIdleTTL)
	}
}

func TestValidate_RedisOptional(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error without redis, got %v", err)
	}
	if c.RedisEnabled() {
		t.Fatalf("expected redis disabled")
	}
	c.Redis = RedisConfig{Host: "localhost"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for redis host without valid port")
	}
}

func TestValidate_WebhookBaseURLScheme(t *testing.T) {
	c := validBase()
	c.Twilio.WebhookBaseURL = "coach.example.com"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for non-http webhook base url")
	}
}
