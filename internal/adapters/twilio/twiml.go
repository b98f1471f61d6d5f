package twilio

import (
	"fmt"
	"strconv"

	"github.com/ClareAI/astra-campaign-service/internal/config"
	"github.com/twilio/twilio-go/twiml"
)

// TwiML builders for the conversation loop. Every answered leg is driven by
// these three shapes: speak-and-listen for ongoing turns, a re-prompt when
// recognition confidence was too low, and speak-and-hangup to close out.

func gather(actionURL string, inner []twiml.Element) twiml.VoiceGather {
	return twiml.VoiceGather{
		Input:         "speech",
		Action:        actionURL,
		Method:        "POST",
		Timeout:       strconv.Itoa(int(config.DefaultGatherTimeout.Seconds())),
		SpeechTimeout: config.DefaultSpeechTimeout,
		SpeechModel:   config.DefaultSpeechModel,
		Enhanced:      "true",
		Language:      config.DefaultLanguage,
		InnerElements: inner,
	}
}

func say(message string) twiml.VoiceSay {
	return twiml.VoiceSay{
		Message:  message,
		Voice:    config.DefaultVoice,
		Language: config.DefaultLanguage,
	}
}

// SpeakAndGather renders a turn: say the message, then listen for the
// customer's speech and post the result to actionURL.
func SpeakAndGather(message, actionURL string) (string, error) {
	doc, err := twiml.Voice([]twiml.Element{
		gather(actionURL, []twiml.Element{say(message)}),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render gather response: %w", err)
	}
	return doc, nil
}

// Reprompt renders a bare listen with no preamble besides the apology,
// used when the previous utterance was not recognized confidently.
func Reprompt(actionURL string) (string, error) {
	return SpeakAndGather(config.ApologyReply, actionURL)
}

// SpeakAndHangup renders the farewell turn: say the closing message and
// terminate the leg.
func SpeakAndHangup(message string) (string, error) {
	doc, err := twiml.Voice([]twiml.Element{
		say(message),
		twiml.VoiceHangup{},
	})
	if err != nil {
		return "", fmt.Errorf("failed to render hangup response: %w", err)
	}
	return doc, nil
}
