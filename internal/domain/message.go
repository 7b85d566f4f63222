package domain

// Button is one choice attached to a system message.
type Button struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Message is a single transcript entry. IDs are sequence numbers scoped to
// one conversation and strictly increase in append order.
type Message struct {
	ID       int64    `json:"id"`
	Text     string   `json:"text"`
	IsUser   bool     `json:"is_user"`
	IsTyping bool     `json:"is_typing"`
	Buttons  []Button `json:"buttons,omitempty"`
}

// Delivered returns true once the reveal animation has finished and the
// message counts as shown to the user.
func (m *Message) Delivered() bool {
	return !m.IsTyping
}
