package domain

// SendMessageCommand is a sending intent before the store has assigned
// a canonical id. Text is trimmed and possibly censored by the router
// before persistence.
type SendMessageCommand struct {
	SenderID    string
	RecipientID string
	Text        string
	Image       string
}

func (c SendMessageCommand) Key() ConversationKey {
	return NewConversationKey(c.SenderID, c.RecipientID)
}
