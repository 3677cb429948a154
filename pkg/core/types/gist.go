package types

import "strings"

// ProjectGist is the six-field project summary extracted from a conversation.
type ProjectGist struct {
	Title          string `json:"title"`
	Genre          string `json:"genre"`
	Summary        string `json:"summary"`
	TargetAudience string `json:"targetAudience"`
	WordCount      string `json:"wordCount"`
	AuthorNote     string `json:"authorNote"`
}

// FallbackGist is the record used whenever extraction output cannot be parsed.
func FallbackGist() ProjectGist {
	return ProjectGist{
		Title:          "Untitled Project",
		Genre:          "Unknown",
		Summary:        "Could not extract summary.",
		TargetAudience: "General",
		WordCount:      "Unknown",
		AuthorNote:     "Extracted during consultation.",
	}
}

// Complete reports whether every field is populated.
func (g ProjectGist) Complete() bool {
	for _, v := range []string{g.Title, g.Genre, g.Summary, g.TargetAudience, g.WordCount, g.AuthorNote} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}
