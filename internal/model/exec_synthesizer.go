package model

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/mattn/go-shellwords"

	"github.com/auralabs/aura-speech/internal/config"
)

type execSynthesizer struct {
	cmd        []string
	sampleRate int
}

// NewExecSynthesizer builds a Synthesizer that shells out to the configured
// command for every call. The command receives the text and either a voice
// name or a reference sample path, plus an output path it must write a WAV
// file to. The output file is transient and removed after each call.
func NewExecSynthesizer(cfg config.TTSConfig) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command is empty")
	}
	return &execSynthesizer{cmd: args, sampleRate: cfg.SampleRate}, nil
}

func (s *execSynthesizer) Synthesize(ctx context.Context, req SynthesizeRequest) ([]byte, error) {
	out, err := os.CreateTemp(os.TempDir(), "aura_tts_*.wav")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	base := s.cmd[0]
	cmdArgs := append([]string{}, s.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--text", req.Text, "--out", outPath)
	cmdArgs = append(cmdArgs, "--sample-rate", strconv.Itoa(s.sampleRate))
	if req.SamplePath != "" {
		cmdArgs = append(cmdArgs, "--sample", req.SamplePath)
	} else if req.Voice != "" {
		cmdArgs = append(cmdArgs, "--voice", req.Voice)
	}
	if req.EmoAlpha > 0 {
		cmdArgs = append(cmdArgs, "--emo-alpha", strconv.FormatFloat(req.EmoAlpha, 'f', -1, 64))
	}
	if req.UseEmoText {
		cmdArgs = append(cmdArgs, "--use-emo-text")
	}

	command := exec.CommandContext(ctx, base, cmdArgs...)
	var stderr bytes.Buffer
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("tts command failed: %w: %s", err, stderr.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read tts output: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("tts command produced no audio")
	}
	return data, nil
}

func (s *execSynthesizer) Ready() bool {
	_, err := exec.LookPath(s.cmd[0])
	return err == nil
}
