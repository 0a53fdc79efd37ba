package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/auralabs/aura-speech/internal/asr"
	"github.com/auralabs/aura-speech/internal/protocol"
	"github.com/auralabs/aura-speech/internal/tts"
	"github.com/auralabs/aura-speech/internal/voices"
)

// conn handles one client for the lifetime of its websocket. All replies
// are written inline from the read loop, so requests and responses pair up
// by arrival order and no write lock is needed.
type conn struct {
	g    *Gateway
	ws   *websocket.Conn
	sess *asr.Session
	log  *slog.Logger
}

func (c *conn) run(ctx context.Context) {
	defer c.ws.Close()

	if c.g.cfg.ReadLimitBytes > 0 {
		c.ws.SetReadLimit(c.g.cfg.ReadLimitBytes)
	}
	c.log.Info("client connected")
	if c.g.sessions != nil {
		c.g.sessions.Add(ctx, 1)
	}
	c.publish(ctx, protocol.EventSessionOpened, "")

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("connection dropped", slogError(err))
			} else {
				c.log.Info("client disconnected")
			}
			c.flushOnDisconnect(ctx)
			c.publish(ctx, protocol.EventSessionClosed, "")
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if !c.sess.AppendFrame(data) {
				c.log.Debug("dropped audio frame, session not listening",
					slog.Int("bytes", len(data)))
			}
		case websocket.TextMessage:
			c.handleText(ctx, data)
		}
	}
}

func (c *conn) handleText(ctx context.Context, data []byte) {
	frame := inboundFrame{EmoAlpha: 1}
	if err := json.Unmarshal(data, &frame); err != nil {
		c.log.Warn("malformed control frame", slogError(err))
		c.sendError("invalid JSON", nil)
		return
	}

	switch {
	case frame.Type == "start":
		c.sess.Start()
		c.publish(ctx, protocol.EventListeningStarted, "")
		c.send(readyFrame{Type: "ready"})
	case frame.Type == "stop" || (frame.IsSpeaking != nil && !*frame.IsSpeaking):
		c.finishListening(ctx)
	case frame.IsSpeaking != nil:
		// speech-in-progress marker, the session is already accumulating
	case frame.Action != "":
		c.handleAction(ctx, frame)
	default:
		c.sendError("unsupported control frame", nil)
	}
}

// finishListening closes out the recording phase and always answers with
// exactly one final transcript frame, empty on short buffers and failures.
func (c *conn) finishListening(ctx context.Context) {
	pcm := c.sess.Stop()
	c.publish(ctx, protocol.EventListeningStopped, fmt.Sprintf("%d bytes", len(pcm)))

	text, err := c.g.deps.Transcriber.Transcribe(ctx, pcm)
	if err != nil {
		c.log.Error("transcription failed", slogError(err))
		text = ""
	}
	c.send(transcriptFrame{Text: text, IsFinal: true})

	if text != "" {
		c.emitTranscript(ctx, text)
	}
}

// flushOnDisconnect transcribes whatever audio is still buffered when the
// peer vanishes mid-recording. The inference runs to completion; the reply
// is best effort since the socket is usually gone.
func (c *conn) flushOnDisconnect(ctx context.Context) {
	if !c.sess.Listening() || c.sess.Buffered() == 0 {
		return
	}
	pcm := c.sess.Stop()
	text, err := c.g.deps.Transcriber.Transcribe(ctx, pcm)
	if err != nil {
		c.log.Error("transcription after disconnect failed", slogError(err))
		return
	}
	if text == "" {
		return
	}
	c.emitTranscript(ctx, text)
	if err := c.ws.WriteJSON(transcriptFrame{Text: text, IsFinal: true}); err != nil {
		c.log.Debug("discarded transcript, client gone", slogError(err))
	}
}

// emitTranscript fans a non-empty final transcript out to the timeline, the
// bus, and the metrics pipeline.
func (c *conn) emitTranscript(ctx context.Context, text string) {
	if c.g.transcripts != nil {
		c.g.transcripts.Add(ctx, 1)
	}
	c.publish(ctx, protocol.EventTranscriptFinal, text)
	c.publishTranscript(text)
}

func (c *conn) handleAction(ctx context.Context, frame inboundFrame) {
	switch frame.Action {
	case "synthesize":
		c.handleSynthesize(ctx, frame)
	case "clone_and_speak":
		c.handleCloneAndSpeak(ctx, frame)
	case "register_voice":
		c.handleRegisterVoice(ctx, frame)
	case "list_voices":
		c.handleListVoices()
	case "check_status":
		c.send(statusFrame{Success: true, ModelReady: c.g.deps.Gate.Ready()})
	default:
		c.sendError(fmt.Sprintf("unknown action: %s", frame.Action), supportedActions)
	}
}

func (c *conn) handleSynthesize(ctx context.Context, frame inboundFrame) {
	opts := tts.SynthesisOptions{EmoAlpha: frame.EmoAlpha, UseEmoText: frame.UseEmoText}
	audio, err := c.g.deps.Speech.Synthesize(ctx, frame.Text, frame.VoiceID, opts)
	if err != nil {
		c.sendSynthesisError(frame, err)
		return
	}
	c.publish(ctx, protocol.EventSynthesis, defaultVoiceID(frame.VoiceID))
	c.sendAudio(audio, defaultVoiceID(frame.VoiceID))
}

func (c *conn) handleCloneAndSpeak(ctx context.Context, frame inboundFrame) {
	sample, ok := c.decodeSample(frame.VoiceSample)
	if !ok {
		return
	}
	opts := tts.SynthesisOptions{EmoAlpha: frame.EmoAlpha, UseEmoText: frame.UseEmoText}
	audio, err := c.g.deps.Speech.CloneAndSpeak(ctx, frame.Text, sample, frame.VoiceID, opts)
	if err != nil {
		c.sendSynthesisError(frame, err)
		return
	}
	c.publish(ctx, protocol.EventVoiceCloned, defaultVoiceID(frame.VoiceID))
	c.sendAudio(audio, defaultVoiceID(frame.VoiceID))
}

func (c *conn) handleRegisterVoice(ctx context.Context, frame inboundFrame) {
	if frame.VoiceSample == "" {
		c.sendError("voice sample must not be empty", nil)
		return
	}
	sample, ok := c.decodeSample(frame.VoiceSample)
	if !ok {
		return
	}
	voice, err := c.g.deps.Voices.Register(defaultVoiceID(frame.VoiceID), frame.VoiceName, sample)
	if err != nil {
		c.sendError(err.Error(), nil)
		return
	}
	c.publish(ctx, protocol.EventVoiceRegistered, voice.ID)
	c.send(registeredFrame{Success: true, VoiceID: voice.ID, Message: "voice registered"})
}

func (c *conn) handleListVoices() {
	all := c.g.deps.Voices.List()
	infos := make([]voiceInfo, 0, len(all))
	for _, v := range all {
		infos = append(infos, voiceInfo{ID: v.ID, Name: v.Name})
	}
	c.send(voicesFrame{Success: true, Voices: infos})
}

// decodeSample turns the base64 payload into raw bytes, reporting failures
// to the client. Empty payloads pass through as nil so the service layer
// can answer with its own missing-sample error.
func (c *conn) decodeSample(encoded string) ([]byte, bool) {
	if encoded == "" {
		return nil, true
	}
	sample, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		c.sendError("voice sample is not valid base64", nil)
		return nil, false
	}
	return sample, true
}

func (c *conn) sendSynthesisError(frame inboundFrame, err error) {
	switch {
	case errors.Is(err, tts.ErrEmptyText):
		c.sendError("text must not be empty", nil)
	case errors.Is(err, tts.ErrMissingSample):
		c.sendError("voice sample must not be empty", nil)
	case errors.Is(err, voices.ErrUnknownVoice):
		c.sendError(fmt.Sprintf("voice id %q is not registered", frame.VoiceID), nil)
	default:
		c.log.Error("synthesis failed", slogError(err))
		c.sendError(err.Error(), nil)
	}
}

func (c *conn) sendAudio(audio []byte, voiceID string) {
	c.send(audioFrame{
		Success: true,
		Audio:   base64.StdEncoding.EncodeToString(audio),
		Format:  "wav",
		VoiceID: voiceID,
	})
}

func (c *conn) send(v any) {
	if err := c.ws.WriteJSON(v); err != nil {
		c.log.Warn("failed to write frame", slogError(err))
	}
}

func (c *conn) sendError(msg string, supported []string) {
	c.send(errorFrame{Error: msg, SupportedActions: supported})
}

// publish records the event on the session timeline and broadcasts it on
// the bus. Both sinks are best effort.
func (c *conn) publish(ctx context.Context, kind, detail string) {
	evt := protocol.SessionEvent{
		SessionID: c.sess.ID,
		Kind:      kind,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
	if err := c.g.deps.Timeline.Record(ctx, evt); err != nil {
		c.log.Warn("failed to record session event", slogError(err))
	}
	if err := c.g.deps.Bus.PublishJSON(protocol.SubjectSessionEvents, evt); err != nil {
		c.log.Warn("failed to publish session event", slogError(err))
	}
}

func (c *conn) publishTranscript(text string) {
	msg := protocol.Transcript{
		SessionID: c.sess.ID,
		Text:      text,
		Final:     true,
		Timestamp: time.Now().UTC(),
	}
	if err := c.g.deps.Bus.PublishJSON(protocol.SubjectTranscriptFinal, msg); err != nil {
		c.log.Warn("failed to publish transcript", slogError(err))
	}
}

func defaultVoiceID(id string) string {
	if id == "" {
		return "default"
	}
	return id
}
