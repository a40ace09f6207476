package openai

import (
	"crypto/sha256"
	"encoding/hex"

	"vitaeforge/internal/llm"
)

// Message is one chat completion message.
type Message struct {
	Role    string
	Content string
}

// BuildRefinePrompt returns the system and user messages of a refine call.
func BuildRefinePrompt(text string) []Message {
	return []Message{
		{Role: "system", Content: llm.RefineSystemMessage},
		{Role: "user", Content: llm.BuildRefinePrompt(text)},
	}
}

// promptHash identifies a prompt in usage logs without logging CV text.
func promptHash(messages []Message) string {
	h := sha256.New()
	for _, m := range messages {
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(m.Content))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
