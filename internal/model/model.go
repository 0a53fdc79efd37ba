package model

import "context"

// RecognizeRequest carries one finalized utterance of raw PCM audio.
type RecognizeRequest struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Recognizer abstracts speech-to-text backends. An empty text with a nil
// error means the audio contained no recognizable speech; a non-nil error
// means the engine itself failed.
type Recognizer interface {
	Transcribe(ctx context.Context, req RecognizeRequest) (string, error)
	Ready() bool
}

// SynthesizeRequest carries one text-to-speech rendering request. Voice
// names a built-in engine voice; SamplePath points at a reference clip for
// cloned synthesis. Exactly one of the two is expected to be set.
type SynthesizeRequest struct {
	Text       string
	Voice      string
	SamplePath string
	EmoAlpha   float64
	UseEmoText bool
}

// Synthesizer abstracts text-to-speech backends. The returned bytes are a
// complete audio clip (WAV container).
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) ([]byte, error)
	Ready() bool
}
