package dto

// Webhook event and message type discriminators consumed from the chat vendor.
const (
	WebhookEventMessageNew = "message.new"
	MessageTypeReply       = "reply"
	AttachmentGroupAction  = "groupAction"
)

// WebhookUser identifies the acting user on a webhook event.
type WebhookUser struct {
	ID string `json:"id"`
}

// WebhookAttachment is a structured payload attached to a message.
type WebhookAttachment struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	GroupID string `json:"groupId"`
}

// WebhookMessage is the message envelope on a webhook event.
type WebhookMessage struct {
	ID          string              `json:"id"`
	Type        string              `json:"type"`
	Text        string              `json:"text"`
	User        WebhookUser         `json:"user"`
	Attachments []WebhookAttachment `json:"attachments"`
	ParentID    string              `json:"parent_id"`
	ReplyCount  int                 `json:"reply_count"`
}

// WebhookMember is a channel member on a webhook event.
type WebhookMember struct {
	UserID string `json:"user_id"`
}

// WebhookEvent is the inbound webhook body from the chat vendor.
type WebhookEvent struct {
	Type               string          `json:"type" validate:"required"`
	ChannelID          string          `json:"channel_id"`
	Message            WebhookMessage  `json:"message"`
	ThreadParticipants []WebhookUser   `json:"thread_participants"`
	Members            []WebhookMember `json:"members"`
}

// ParticipantIDs flattens the thread participants to their user ids.
func (e WebhookEvent) ParticipantIDs() []string {
	ids := make([]string, 0, len(e.ThreadParticipants))
	for _, participant := range e.ThreadParticipants {
		ids = append(ids, participant.ID)
	}
	return ids
}

// ReceiverIDs returns the channel members other than the sender.
func (e WebhookEvent) ReceiverIDs() []string {
	var receivers []string
	for _, member := range e.Members {
		if member.UserID != e.Message.User.ID {
			receivers = append(receivers, member.UserID)
		}
	}
	return receivers
}

// BadgeResponse carries a computed badge value for one user.
type BadgeResponse struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}
