package synthesize

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

const playerSampleRate = beep.SampleRate(44100)

// BeepPlayer plays synthesized audio through the default output device.
// The underlying speaker is process-global, which matches the one-active-
// stream contract: playing clears whatever was playing before.
type BeepPlayer struct{}

func NewBeepPlayer() (*BeepPlayer, error) {
	if err := speaker.Init(playerSampleRate, playerSampleRate.N(100*time.Millisecond)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return &BeepPlayer{}, nil
}

func (p *BeepPlayer) Play(audio Audio, done func()) error {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)

	switch audio.Format {
	case "mp3":
		streamer, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(audio.Data)))
	case "wav":
		streamer, format, err = wav.Decode(bytes.NewReader(audio.Data))
	default:
		return fmt.Errorf("unsupported audio format %q", audio.Format)
	}
	if err != nil {
		return fmt.Errorf("decode %s audio: %w", audio.Format, err)
	}

	resampled := beep.Resample(4, format.SampleRate, playerSampleRate, streamer)

	speaker.Clear()
	speaker.Play(beep.Seq(resampled, beep.Callback(func() {
		_ = streamer.Close()
		if done != nil {
			done()
		}
	})))

	return nil
}

func (p *BeepPlayer) Stop() {
	speaker.Clear()
}
