package dialogue

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Transcribe converts a recorded audio segment to text via Whisper.
// Unlike Generate there is no sensible local fallback for speech, so failures
// surface as errors and the caller ends the call with an apology.
func (c *Client) Transcribe(ctx context.Context, audio []byte, languageHint string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("dialogue: empty audio segment")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.transcribeTimeout)
	defer cancel()

	resp, err := c.api.CreateTranscription(callCtx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audio),
		FilePath: "segment.wav", // extension only; content comes from Reader
		Language: languageHint,
	})
	if err != nil {
		return "", fmt.Errorf("dialogue: transcription failed: %w", err)
	}
	return resp.Text, nil
}
