package agent

import "parley/pkg/llm"

// Conversation owns the ordered message history for one agent. It is not
// safe for concurrent use; the orchestration loop processes turns strictly
// sequentially and is the only writer.
type Conversation struct {
	messages []llm.Message
}

// NewConversation creates a conversation seeded with the given history.
func NewConversation(messages ...llm.Message) *Conversation {
	return &Conversation{messages: messages}
}

// PushOrMerge appends a message to the history. When the new message's role
// matches the last message's role, its content blocks are appended to that
// message instead, so the history always alternates user/assistant as the
// wire protocol requires.
func (c *Conversation) PushOrMerge(msg llm.Message) {
	if n := len(c.messages); n > 0 && c.messages[n-1].Role == msg.Role {
		c.messages[n-1].Content = append(c.messages[n-1].Content, msg.Content...)
		return
	}
	c.messages = append(c.messages, msg)
}

// Messages returns a copy of the history, safe to hand to a request while
// the conversation keeps growing.
func (c *Conversation) Messages() []llm.Message {
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent message, if any.
func (c *Conversation) Last() (llm.Message, bool) {
	if len(c.messages) == 0 {
		return llm.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}
