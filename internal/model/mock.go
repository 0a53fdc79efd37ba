package model

import (
	"context"
	"fmt"
	"os"
)

type mockRecognizer struct{}

// NewMockRecognizer returns a Recognizer for development without a real
// engine. It reports the payload size instead of recognizing anything.
func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(_ context.Context, req RecognizeRequest) (string, error) {
	if len(req.PCM) == 0 {
		return "", nil
	}
	return fmt.Sprintf("[transcript length=%d]", len(req.PCM)), nil
}

func (m *mockRecognizer) Ready() bool { return true }

type mockSynthesizer struct {
	sampleRate int
}

// NewMockSynthesizer returns a Synthesizer producing short silent WAV clips
// whose duration grows with the text length.
func NewMockSynthesizer(sampleRate int) Synthesizer {
	return &mockSynthesizer{sampleRate: sampleRate}
}

func (m *mockSynthesizer) Synthesize(_ context.Context, req SynthesizeRequest) ([]byte, error) {
	samples := m.sampleRate/10 + len(req.Text)*32
	pcm := make([]byte, samples*2)

	file, err := os.CreateTemp(os.TempDir(), "aura_tts_mock_*.wav")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := writePCMToWav(file, pcm, m.sampleRate, 1); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file.Name())
	if err != nil {
		return nil, fmt.Errorf("read mock output: %w", err)
	}
	return data, nil
}

func (m *mockSynthesizer) Ready() bool { return true }
