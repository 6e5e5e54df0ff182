package event

import "context"

// FollowUpEventType distinguishes the two document-change transitions.
type FollowUpEventType string

const (
	FollowUpCreated FollowUpEventType = "created"
	FollowUpUpdated FollowUpEventType = "updated"
)

// FollowUpSnapshot is the follow-up document state carried on a change event.
type FollowUpSnapshot struct {
	CreatorID string   `json:"creatorId"`
	Viewers   []string `json:"viewers"`
}

// FollowUpEvent describes a create or update of a follow-up reply. It is the
// transport-agnostic shape the processors consume; adapters translate
// whatever the hosting store or queue emits into this.
type FollowUpEvent struct {
	Type         FollowUpEventType `json:"eventType"`
	GroupID      string            `json:"groupId"`
	ActionStepID string            `json:"actionStepId"`
	FollowUpID   string            `json:"followUpId"`
	Before       *FollowUpSnapshot `json:"before,omitempty"`
	After        FollowUpSnapshot  `json:"after"`
}

// NewViewers returns the viewers added by this update. Shrinking viewer
// lists are never presented upstream, so only additions matter.
func (e FollowUpEvent) NewViewers() []string {
	previous := map[string]struct{}{}
	if e.Before != nil {
		for _, viewer := range e.Before.Viewers {
			previous[viewer] = struct{}{}
		}
	}

	var added []string
	for _, viewer := range e.After.Viewers {
		if _, seen := previous[viewer]; !seen {
			added = append(added, viewer)
		}
	}
	return added
}

// Consumer handles follow-up change events. Implementations must stay safe
// under at-least-once redelivery.
type Consumer interface {
	Handle(ctx context.Context, event FollowUpEvent) error
}

// BadgeTask asks for a badge recomputation for a set of users, scoped to the
// group the triggering activity happened in.
type BadgeTask struct {
	Users   []string `json:"users"`
	GroupID string   `json:"groupId"`
}

// BadgePublisher enqueues badge recomputation tasks.
type BadgePublisher interface {
	PublishBadgeTask(ctx context.Context, task BadgeTask) error
}
