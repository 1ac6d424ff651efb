package httpapi

import (
	"huddle/domain"
	"time"

	"github.com/samber/lo"
)

type MessageDTO struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	TeamID     string    `json:"team_id,omitempty"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id,omitempty"`
	Content    string    `json:"content"`
	Type       string    `json:"message_type"`
	MediaURL   string    `json:"media_url,omitempty"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

type ConversationDTO struct {
	CounterpartyID string     `json:"counterparty_id"`
	Kind           string     `json:"kind"`
	DisplayName    string     `json:"display_name"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	LatestMessage  MessageDTO `json:"latest_message"`
	UnreadCount    int        `json:"unread_count"`
}

// OverviewDTO is the payload every surface renders: the page list, the overlay
// and the badge all read the same document.
type OverviewDTO struct {
	Conversations []ConversationDTO `json:"conversations"`
	UnreadTotal   int               `json:"unread_total"`
	State         string            `json:"state"`
}

// SendMessageRequest targets a team with team_id, or a user with receiver_id.
type SendMessageRequest struct {
	TeamID     string `json:"team_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
	Type       string `json:"message_type"`
	MediaURL   string `json:"media_url"`
}

// ClientCommand is what a websocket client sends: open or close a conversation.
type ClientCommand struct {
	Action         string `json:"action"`
	CounterpartyID string `json:"counterparty_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (r SendMessageRequest) toCommand(senderID string) domain.SendMessageCommand {
	cmd := domain.SendMessageCommand{
		SenderID: senderID,
		Content:  r.Content,
		Type:     domain.MessageType(r.Type),
		MediaURL: r.MediaURL,
		TeamID:   r.TeamID,
	}
	if r.ReceiverID != "" {
		cmd.Scope = domain.PrivateScope(senderID, r.ReceiverID)
	} else {
		cmd.Scope = domain.TeamScope(r.TeamID)
	}
	return cmd
}

func toMessageDTO(m domain.Message) MessageDTO {
	return MessageDTO{
		ID:         m.ID,
		Kind:       m.Kind.String(),
		TeamID:     m.TeamID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Type:       string(m.Type),
		MediaURL:   m.MediaURL,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}

func toMessageDTOs(messages []domain.Message) []MessageDTO {
	return lo.Map(messages, func(m domain.Message, _ int) MessageDTO {
		return toMessageDTO(m)
	})
}

func toConversationDTO(c domain.Conversation) ConversationDTO {
	return ConversationDTO{
		CounterpartyID: c.CounterpartyID,
		Kind:           c.Kind.String(),
		DisplayName:    c.DisplayName,
		AvatarURL:      c.AvatarURL,
		LatestMessage:  toMessageDTO(c.LatestMessage),
		UnreadCount:    c.UnreadCount,
	}
}

func toConversationDTOs(conversations []domain.Conversation) []ConversationDTO {
	return lo.Map(conversations, func(c domain.Conversation, _ int) ConversationDTO {
		return toConversationDTO(c)
	})
}
