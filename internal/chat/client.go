package chat

import "context"

// Message is the authoritative view of a vendor-side message.
type Message struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	UserID     string `json:"user_id"`
	ReplyCount int    `json:"reply_count"`
}

// Channel is the vendor's view of a chat channel, including its per-user
// unread accounting, which the engine trusts rather than recomputes.
type Channel struct {
	ID           string         `json:"id"`
	GroupID      string         `json:"group_id"`
	MemberIDs    []string       `json:"member_ids"`
	UnreadByUser map[string]int `json:"unread_by_user"`
}

// UnreadFor returns the vendor-reported unread message count for a user.
func (c Channel) UnreadFor(userID string) int {
	return c.UnreadByUser[userID]
}

// ChannelFilter narrows a channel query. Zero values are ignored.
type ChannelFilter struct {
	ID          string   `json:"id,omitempty"`
	Type        string   `json:"type,omitempty"`
	GroupID     string   `json:"group_id,omitempty"`
	Member      string   `json:"member,omitempty"`
	MemberCount int      `json:"member_count,omitempty"`
	MembersAny  []string `json:"members_any,omitempty"`
}

// Client is the capability surface the engine consumes from the chat vendor.
type Client interface {
	GetMessage(ctx context.Context, id string) (Message, error)
	QueryChannels(ctx context.Context, filter ChannelFilter) ([]Channel, error)
}
