package docstore

import "fmt"

// Logical key layout shared with the rest of the platform. The UI and badge
// push consumers rely on these paths, so they are part of the contract.

// ActionStepKey addresses an action step aggregate document.
func ActionStepKey(groupID, actionStepID string) string {
	return fmt.Sprintf("groups/%s/actionSteps/%s", groupID, actionStepID)
}

// UnreadCounterKey addresses a member's unread counter for one action step.
func UnreadCounterKey(groupID, actionStepID, memberID string) string {
	return fmt.Sprintf("groups/%s/actionSteps/%s/unreadCount/%s", groupID, actionStepID, memberID)
}

// ThreadKey addresses a denormalized thread summary document.
func ThreadKey(groupID, threadID string) string {
	return fmt.Sprintf("groups/%s/threads/%s", groupID, threadID)
}

// UnreadThreadKey addresses a member's unread marker for one thread.
func UnreadThreadKey(groupID, threadID, memberID string) string {
	return fmt.Sprintf("groups/%s/threads/%s/unreadThreads/%s", groupID, threadID, memberID)
}

// Field names used across the aggregate documents.
const (
	FieldCount          = "count"
	FieldFollowUpCount  = "followUpCount"
	FieldReplyCount     = "replyCount"
	FieldText           = "text"
	FieldCreatorID      = "creatorId"
	FieldType           = "type"
	FieldPlanID         = "planId"
	FieldStartDate      = "startDate"
	FieldUpdated        = "updated"
	FieldIsUnread       = "isUnread"
	FieldUID            = "uid"
	FieldGroupID        = "groupId"
	FieldThreadID       = "threadId"
	FieldThreadStart    = "threadStartDate"
	SetFollowUpMembers  = "followUpMembers"
	SetCompletedMembers = "completedMembers"
	SetUnreadFollowUps  = "unreadFollowUps"
	SetNotified         = "notified"
	SetParticipantIDs   = "participantIds"
)
