package conversation

import "voicecoach/internal/accounts"

// Fixed spoken lines. The engine produces plain text only; the calling
// channel renders it as audio.

var greetings = map[accounts.Personality]string{
	accounts.PersonalityStrict:     "This is your accountability check. Tell me, what have you accomplished today?",
	accounts.PersonalitySarcastic:  "Well, well, well. Another productivity call. So, how's that to-do list looking?",
	accounts.PersonalitySupportive: "Hi there! It's time for your accountability check-in. How are you feeling about your progress today?",
}

const (
	genericGreeting = "Hello! This is your productivity accountability call. How are you doing with your goals today?"

	closingLine = "That's all for now. Stay productive!"

	noInputLine = "I didn't hear anything. Goodbye!"

	timeoutApology       = "I didn't catch anything. Let's talk next time. Goodbye!"
	understandApology    = "Sorry, I couldn't understand you. Goodbye!"
	recordingApology     = "Sorry, I didn't receive your recording. Goodbye!"
	processingApology    = "Sorry, I couldn't process your recording. Goodbye!"
	internalErrorApology = "Sorry, there was an error. Goodbye!"
)

// InternalErrorApology is the terminal line webhook handlers speak when the
// engine itself cannot be reached; a dropped connection with no spoken
// response is never acceptable.
const InternalErrorApology = internalErrorApology

func greetingFor(p accounts.Personality) string {
	if g, ok := greetings[p]; ok {
		return g
	}
	return genericGreeting
}
