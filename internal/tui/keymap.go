package tui

// Key binding constants used in handleKey.
const (
	KeyQuit        = "ctrl+c"
	KeyNextView    = "tab"
	KeyToggleVoice = "ctrl+v"
	KeyEnter       = "enter"
	KeyClear       = "esc"
	KeyGist        = "g"
	KeySubmit      = "s"
)
