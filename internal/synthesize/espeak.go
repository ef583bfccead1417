package synthesize

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/dkoval/callbridge/internal/transcript"
)

type espeakEngine struct {
	binary string
}

// NewEspeak returns the local fallback engine: espeak-ng writing a WAV
// stream to stdout. Lower quality than a hosted voice, but it works with
// the network down, and silence is the one thing a live call cannot have.
func NewEspeak(binary string) Engine {
	if binary == "" {
		binary = "espeak-ng"
	}
	return &espeakEngine{binary: binary}
}

func (e *espeakEngine) Name() string { return "espeak" }

func (e *espeakEngine) Synthesize(ctx context.Context, text, language, _ string) (Audio, error) {
	cmd := exec.CommandContext(ctx, e.binary, "-v", transcript.BaseTag(language), "--stdout", text)

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return Audio{}, fmt.Errorf("%s: %w", e.binary, err)
	}
	if out.Len() == 0 {
		return Audio{}, fmt.Errorf("%s: empty audio", e.binary)
	}

	return Audio{Format: "wav", Data: out.Bytes()}, nil
}
