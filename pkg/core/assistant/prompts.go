package assistant

const (
	// DefaultTextModel handles chat, critique and gist extraction.
	DefaultTextModel = "gemini-3-pro-preview"

	// DefaultLiveModel handles the native-audio voice session.
	DefaultLiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"

	// DefaultVoice is the prebuilt voice used for spoken replies.
	DefaultVoice = "Charon"
)

// Fallback replies used when the model answers with no text.
const (
	EmptyChatReply     = "I apologize, I couldn't process that request."
	EmptyCritiqueReply = "Image analysis failed."
)

// Prompts holds every instruction sent to the model. Zero fields fall back to
// the defaults.
type Prompts struct {
	ChatPersona  string `yaml:"chat_persona" json:"chat_persona"`
	Critique     string `yaml:"critique" json:"critique"`
	Gist         string `yaml:"gist" json:"gist"`
	LiveGreeting string `yaml:"live_greeting" json:"live_greeting"`
}

// DefaultPrompts returns the Lumina Assistant persona and task prompts.
func DefaultPrompts() Prompts {
	return Prompts{
		ChatPersona: "You are 'Lumina Assistant', a high-end acquisitions editor at Lumina Publishing. " +
			"You help authors develop their manuscripts, provide artistic feedback on cover concepts, " +
			"and advise on marketability. Be professional, encouraging, and sophisticated. " +
			"Use elegant language. Your goal is to guide them toward a successful publication proposal.",
		Critique: "As an expert book cover designer and editor, analyze this image. " +
			"Is it suitable for a book cover? What genre does it suggest? " +
			"Provide specific feedback on composition, mood, and marketability.",
		Gist: "Based on the following conversation with an author, extract the details of their project " +
			"into a structured format. Return only JSON.\n\nConversation:\n",
		LiveGreeting: "You are Lumina Assistant. Greet the visitor with a sophisticated voice. " +
			"Briefly welcome them to the publishing house and ask about their creative project. " +
			"Be polite, literary, and engaging.",
	}
}

// WithDefaults fills empty fields from DefaultPrompts.
func (p Prompts) WithDefaults() Prompts {
	d := DefaultPrompts()
	if p.ChatPersona == "" {
		p.ChatPersona = d.ChatPersona
	}
	if p.Critique == "" {
		p.Critique = d.Critique
	}
	if p.Gist == "" {
		p.Gist = d.Gist
	}
	if p.LiveGreeting == "" {
		p.LiveGreeting = d.LiveGreeting
	}
	return p
}
