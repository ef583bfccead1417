package capture

import (
	"context"
	"fmt"
	"log"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// NewDeepgramFactory builds live-transcription streams against Deepgram.
// An empty apiKey falls back to the SDK's environment lookup.
func NewDeepgramFactory(apiKey, model string) ClientFactory {
	return func(ctx context.Context, language string, sampleRate int, a *Adapter) (StreamClient, error) {
		cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
		tOptions := &interfaces.LiveTranscriptionOptions{
			Model:          model,
			Language:       language,
			Punctuate:      true,
			SmartFormat:    true,
			InterimResults: true,
			Encoding:       "linear16",
			SampleRate:     sampleRate,
			Channels:       1,
		}

		dgClient, err := client.NewWSUsingCallback(ctx, apiKey, cOptions, tOptions, dgCallback{adapter: a})
		if err != nil {
			return nil, fmt.Errorf("create deepgram client: %w", err)
		}
		return dgClient, nil
	}
}

type dgCallback struct {
	adapter *Adapter
}

func (c dgCallback) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]

	if !mr.IsFinal {
		c.adapter.engineInterim(alt.Transcript)
		return nil
	}

	c.adapter.engineFinalFragment(alt.Transcript, alt.Confidence)
	if mr.SpeechFinal {
		c.adapter.engineFlush()
	}
	return nil
}

func (c dgCallback) UtteranceEnd(*api.UtteranceEndResponse) error {
	c.adapter.engineFlush()
	return nil
}

func (c dgCallback) Error(er *api.ErrorResponse) error {
	c.adapter.engineError(mapErrorCode(er.ErrCode, er.Description), er.Description)
	return nil
}

func (c dgCallback) Open(*api.OpenResponse) error {
	log.Println("connected to Deepgram")
	return nil
}

func (c dgCallback) Close(*api.CloseResponse) error {
	log.Println("disconnected from Deepgram")
	return nil
}

func (c dgCallback) Metadata(*api.MetadataResponse) error { return nil }

func (c dgCallback) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (c dgCallback) UnhandledEvent([]byte) error { return nil }
