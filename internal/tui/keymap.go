package tui

// Key binding constants used in handleKey.
const (
	KeyQuit         = "q"
	KeyQuitUpper    = "Q"
	KeyCtrlC        = "ctrl+c"
	KeySpace        = " "
	KeyClear        = "c"
	KeyLanguage     = "l"
	KeyEnhanced     = "e"
	KeySummary      = "s"
	KeyAsk          = "?"
	KeySave         = "w"
	KeyUp           = "up"
	KeyDown         = "down"
	KeyEnter        = "enter"
	KeyEsc          = "esc"
	KeyBackspace    = "backspace"
	KeyToggleNotify = "n"
)
