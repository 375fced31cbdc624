// Package ai provides streaming text generation backed by hosted model
// providers.
package ai

import (
	"context"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// GenerateRequest describes one generation request: the conversation
// history, the selected model and the optional resolved system text.
type GenerateRequest struct {
	ModelID  string
	System   string
	Messages []Message
}

// Generator produces a lazy, unbounded sequence of text increments for a
// request. The content channel is closed when the sequence ends; a
// transport or provider failure is reported on the error channel.
type Generator interface {
	Stream(ctx context.Context, req *GenerateRequest) (<-chan string, <-chan error)
}

// Model describes one selectable model.
type Model struct {
	ID    string
	Label string
}

// Models is the catalog of selectable models.
var Models = []Model{
	{ID: "gemini-3-flash-preview", Label: "Gemini 3 Flash"},
	{ID: "gemini-3-pro-preview", Label: "Gemini 3 Pro"},
}

// DefaultModelID is used when the caller has no saved selection.
var DefaultModelID = Models[0].ID

// IsKnownModel reports whether id is in the catalog.
func IsKnownModel(id string) bool {
	for _, m := range Models {
		if m.ID == id {
			return true
		}
	}
	return false
}
