package server

// inboundFrame is the union of every text frame a client can send. Control
// frames carry type, request frames carry action; unknown fields are
// ignored so older clients keep working.
type inboundFrame struct {
	Type        string  `json:"type"`
	IsSpeaking  *bool   `json:"is_speaking"`
	Action      string  `json:"action"`
	Text        string  `json:"text"`
	VoiceID     string  `json:"voice_id"`
	VoiceName   string  `json:"voice_name"`
	VoiceSample string  `json:"voice_sample"`
	EmoAlpha    float64 `json:"emo_alpha"`
	UseEmoText  bool    `json:"use_emo_text"`
}

type readyFrame struct {
	Type string `json:"type"`
}

type transcriptFrame struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

type errorFrame struct {
	Error            string   `json:"error"`
	SupportedActions []string `json:"supported_actions,omitempty"`
}

type audioFrame struct {
	Success bool   `json:"success"`
	Audio   string `json:"audio"`
	Format  string `json:"format"`
	VoiceID string `json:"voice_id"`
}

type registeredFrame struct {
	Success bool   `json:"success"`
	VoiceID string `json:"voice_id"`
	Message string `json:"message"`
}

type voiceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type voicesFrame struct {
	Success bool        `json:"success"`
	Voices  []voiceInfo `json:"voices"`
}

type statusFrame struct {
	Success    bool `json:"success"`
	ModelReady bool `json:"model_ready"`
}

var supportedActions = []string{
	"synthesize",
	"clone_and_speak",
	"register_voice",
	"list_voices",
	"check_status",
}
