package dialogue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"voicecoach/internal/accounts"
	"voicecoach/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
)

// HistoryWindow is how many trailing history entries are forwarded with each
// turn (~1.5 exchanges), bounding context cost per call.
const HistoryWindow = 3

// Message is one history entry on the gateway wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the policy gateway's decision for one turn. Fallback marks replies
// synthesized locally because the gateway call failed; they are not errors —
// a single failed turn never aborts the call.
type Reply struct {
	Text      string `json:"response"`
	ShouldEnd bool   `json:"should_end"`
	Fallback  bool   `json:"-"`
}

// Client talks to the OpenAI API for reply generation and transcription.
type Client struct {
	api *openai.Client

	model             string
	generateTimeout   time.Duration
	transcribeTimeout time.Duration
}

func NewClient(apiKey string, generateTimeout, transcribeTimeout time.Duration) *Client {
	return NewClientWithConfig(openai.DefaultConfig(apiKey), generateTimeout, transcribeTimeout)
}

// NewClientWithConfig allows a custom API config (base URL override in tests).
func NewClientWithConfig(cfg openai.ClientConfig, generateTimeout, transcribeTimeout time.Duration) *Client {
	if generateTimeout <= 0 {
		generateTimeout = 10 * time.Second
	}
	if transcribeTimeout <= 0 {
		transcribeTimeout = 10 * time.Second
	}
	return &Client{
		api:               openai.NewClientWithConfig(cfg),
		model:             openai.GPT3Dot5Turbo,
		generateTimeout:   generateTimeout,
		transcribeTimeout: transcribeTimeout,
	}
}

// System prompts force JSON-only replies so the should_end decision rides
// along with the spoken text in a single cheap completion.
var systemPrompts = map[accounts.Personality]string{
	accounts.PersonalityStrict:     `You are a strict accountability coach. Reply ONLY with valid JSON (no other text). Format: {"response": "your 30-word message", "should_end": true/false}. Be direct and demanding.`,
	accounts.PersonalitySarcastic:  `You are a sarcastic accountability coach. Reply ONLY with valid JSON (no other text). Format: {"response": "your 30-word message", "should_end": true/false}. Use wit to challenge excuses.`,
	accounts.PersonalitySupportive: `You are a supportive accountability coach. Reply ONLY with valid JSON (no other text). Format: {"response": "your 30-word message", "should_end": true/false}. Encourage but hold accountable.`,
}

var fallbackReplies = map[accounts.Personality]string{
	accounts.PersonalityStrict:     "I need you to be more specific about your productivity. What exactly have you accomplished?",
	accounts.PersonalitySarcastic:  "Oh, that's... interesting. Care to elaborate on that excuse?",
	accounts.PersonalitySupportive: "I understand it's challenging. Let's focus on what you can do next.",
}

const neutralReply = "Let's stay focused on your productivity goals."

// FallbackReply returns the canned reply for a personality, used when the
// gateway is unreachable.
func FallbackReply(p accounts.Personality) string {
	if text, ok := fallbackReplies[p]; ok {
		return text
	}
	return neutralReply
}

// Generate asks the policy model for the next spoken reply and the
// end-of-call decision. It never returns an error: any gateway failure
// degrades to a personality-specific fallback reply that keeps the call going.
func (c *Client) Generate(ctx context.Context, utterance string, personality accounts.Personality, history []Message) Reply {
	prompt, ok := systemPrompts[personality]
	if !ok {
		prompt = systemPrompts[accounts.PersonalitySupportive]
	}

	messages := make([]openai.ChatCompletionMessage, 0, HistoryWindow+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt})
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: utterance})

	callCtx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   80,
		Temperature: 0.7,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		logger.From(ctx).Warn("dialogue policy call failed, using fallback", "personality", personality, "err", err)
		return Reply{Text: FallbackReply(personality), Fallback: true}
	}

	var out Reply
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Choices[0].Message.Content)), &out); err != nil {
		logger.From(ctx).Warn("dialogue policy returned malformed json", "err", err)
		return Reply{Text: neutralReply}
	}
	if strings.TrimSpace(out.Text) == "" {
		out.Text = neutralReply
	}
	return out
}
