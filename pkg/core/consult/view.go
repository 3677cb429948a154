package consult

// View names one of the consultation screens.
type View string

const (
	ViewConversation  View = "conversation"
	ViewImageCritique View = "image_critique"
	ViewSubmission    View = "submission"
)

// Views lists every view in navigation order.
var Views = []View{ViewConversation, ViewImageCritique, ViewSubmission}

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	for _, known := range Views {
		if v == known {
			return true
		}
	}
	return false
}

// Next returns the view after v, wrapping around.
func (v View) Next() View {
	for i, known := range Views {
		if v == known {
			return Views[(i+1)%len(Views)]
		}
	}
	return ViewConversation
}

// Title is the header shown for the view.
func (v View) Title() string {
	switch v {
	case ViewImageCritique:
		return "Visual Feedback Engine"
	case ViewSubmission:
		return "Project Packaging"
	default:
		return "Editorial Consultant"
	}
}
