package capture

import "github.com/dkoval/callbridge/internal/transcript"

// fragmentBuffer accumulates finalized fragments until the engine signals
// the utterance is complete.
type fragmentBuffer struct {
	fragments []transcript.Fragment
}

func (b *fragmentBuffer) Add(f transcript.Fragment) {
	b.fragments = append(b.fragments, f)
}

// Flush returns the buffered fragments and resets the buffer. Returns nil
// when empty.
func (b *fragmentBuffer) Flush() []transcript.Fragment {
	if len(b.fragments) == 0 {
		return nil
	}
	out := b.fragments
	b.fragments = nil
	return out
}
