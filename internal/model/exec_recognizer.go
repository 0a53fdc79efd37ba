package model

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"

	"github.com/auralabs/aura-speech/internal/config"
)

type execRecognizer struct {
	cmd      []string
	language string
}

type recognizeResult struct {
	Text string `json:"text"`
}

// NewExecRecognizer builds a Recognizer that shells out to the configured
// command for every call. The command receives the utterance as a WAV file
// path and must print a JSON object with a "text" field on stdout.
func NewExecRecognizer(cfg config.ASRConfig) (Recognizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse asr command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("asr command is empty")
	}
	return &execRecognizer{cmd: args, language: cfg.Language}, nil
}

func (r *execRecognizer) Transcribe(ctx context.Context, req RecognizeRequest) (string, error) {
	file, err := os.CreateTemp(os.TempDir(), "aura_asr_*.wav")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := writePCMToWav(file, req.PCM, req.SampleRate, req.Channels); err != nil {
		return "", err
	}

	base := r.cmd[0]
	cmdArgs := append([]string{}, r.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--audio", file.Name())
	if r.language != "" {
		cmdArgs = append(cmdArgs, "--language", r.language)
	}

	command := exec.CommandContext(ctx, base, cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("asr command failed: %w: %s", err, stderr.String())
	}

	var resp recognizeResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("decode asr response: %w", err)
	}
	return resp.Text, nil
}

func (r *execRecognizer) Ready() bool {
	_, err := exec.LookPath(r.cmd[0])
	return err == nil
}

func writePCMToWav(file *os.File, pcm []byte, sampleRate int, channels int) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	buffer := &audio.IntBuffer{Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate}}
	samples := make([]int, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
