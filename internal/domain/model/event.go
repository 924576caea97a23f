package model

// Inbound events produced by the chat transport.

type CommandEvent struct {
	UserID   int64
	ChatID   int64
	Username string
	Command  string
	Args     string
}

type ButtonEvent struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Payload   string
}

type TextEvent struct {
	UserID int64
	ChatID int64
	Text   string
}

// Reply is what a handler wants shown: text plus an optional button menu.
type Reply struct {
	Text    string
	Buttons [][]Button
}

// Button is a transport-neutral inline button.
type Button struct {
	Text   string
	Action Action
	URL    string
}

// ButtonRow is a convenience for single-button rows.
func ButtonRow(text string, a Action) []Button { return []Button{{Text: text, Action: a}} }
