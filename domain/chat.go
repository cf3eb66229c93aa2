package domain

import "context"

// FallbackReply replaces the assistant reply whenever a round trip fails.
const FallbackReply = "Sorry—something went wrong. Please try again or check your API route."

// ChatRequest is the body sent to the chat backend on every round trip.
type ChatRequest struct {
	SystemPrompt string    `json:"systemPrompt"`
	Messages     []Message `json:"messages"`
}

// ChatReply is the body the chat backend answers with.
type ChatReply struct {
	Reply string `json:"reply"`
}

// Assistant sends a conversation to a chat backend and returns the reply.
// Implementations never return an error: failures come back as the
// fallback message so they can be appended to the conversation.
type Assistant interface {
	Send(ctx context.Context, systemPrompt string, conversation []Message) Message
}

// FallbackMessage is the assistant message shown in place of a failed reply.
func FallbackMessage() Message {
	return Message{Role: AssistantRole, Content: FallbackReply}
}

// Llm abstracts any chat/LLM provider.
type Llm interface {
	// Reply answers the last message of history, following systemPrompt.
	Reply(ctx context.Context, systemPrompt string, history []Message) (string, error)
}
