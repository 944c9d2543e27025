package model

// ConversationTurn pairs one user question with the assistant answer
// produced for it. Answers are stored raw, before any display rewriting.
type ConversationTurn struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}
