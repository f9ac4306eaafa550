package httpdto

// OpenConversationRequest starts or resumes a conversation with another party.
type OpenConversationRequest struct {
	PartyID   string `json:"party_id" binding:"required,uuid"`
	PartyType string `json:"party_type" binding:"required,oneof=RESIDENT MANAGER"`
}

// SendMessageRequest posts a new message into a conversation.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ConversationResponse is the envelope returned by the open endpoint.
type ConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}
