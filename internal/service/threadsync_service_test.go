package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/groupflow/activity-sync-api/internal/chat"
	"github.com/groupflow/activity-sync-api/internal/docstore"
	"github.com/groupflow/activity-sync-api/internal/models"
	"github.com/groupflow/activity-sync-api/internal/repository"
)

type stubChatClient struct {
	messages   map[string]chat.Message
	channels   []chat.Channel
	lastFilter chat.ChannelFilter
	err        error
}

func (s *stubChatClient) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	if s.err != nil {
		return chat.Message{}, s.err
	}
	message, ok := s.messages[id]
	if !ok {
		return chat.Message{}, errors.New("message not found")
	}
	return message, nil
}

func (s *stubChatClient) QueryChannels(ctx context.Context, filter chat.ChannelFilter) ([]chat.Channel, error) {
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.channels, nil
}

type memoryActionRepo struct {
	reactions map[string][]string
	missing   bool
}

func (m *memoryActionRepo) ListRecent(ctx context.Context, groupID string, since time.Time, limit int) ([]models.GroupAction, error) {
	return nil, nil
}

func (m *memoryActionRepo) AddReaction(ctx context.Context, groupID, actionID, userID string) error {
	if m.missing {
		return repository.ErrGroupActionNotFound
	}
	for _, existing := range m.reactions[actionID] {
		if existing == userID {
			return nil
		}
	}
	m.reactions[actionID] = append(m.reactions[actionID], userID)
	return nil
}

func registerThread(t *testing.T, store docstore.Store, groupID, threadID string) {
	t.Helper()
	require.NoError(t, store.MergeSet(context.Background(), docstore.ThreadKey(groupID, threadID), map[string]interface{}{
		docstore.FieldText:      "thread start",
		docstore.FieldType:      "goal",
		docstore.FieldPlanID:    "p1",
		docstore.FieldStartDate: "2026-08-01T00:00:00Z",
	}))
}

func replyEvent(reported int) ThreadReplyEvent {
	return ThreadReplyEvent{
		GroupID:            "g1",
		ParentMessageID:    "m1",
		SenderID:           "u1",
		ReplyText:          "a reply",
		Participants:       []string{"u1", "u2"},
		ReportedReplyCount: reported,
	}
}

func newThreadSyncForTest(t *testing.T, chatClient chat.Client) (ThreadSyncService, docstore.Store, *memoryActionRepo) {
	t.Helper()
	store := newStoreForTest(t)
	groups := &memoryGroupRepo{groups: map[string][]string{"g1": {"u1", "u2", "u3"}}}
	actions := &memoryActionRepo{reactions: map[string][]string{}}
	return NewThreadSyncService(store, chatClient, groups, actions, zerolog.Nop()), store, actions
}

func TestSyncReplyIgnoresUnknownThread(t *testing.T) {
	chatClient := &stubChatClient{messages: map[string]chat.Message{}}
	svc, store, _ := newThreadSyncForTest(t, chatClient)

	require.NoError(t, svc.SyncReply(context.Background(), replyEvent(1)))

	exists, err := store.Exists(context.Background(), docstore.ThreadKey("g1", "m1"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSyncReplyUpsertsThreadAndFansOutUnreadMarkers(t *testing.T) {
	chatClient := &stubChatClient{messages: map[string]chat.Message{
		"m1": {ID: "m1", Text: "updated text", UserID: "u1", ReplyCount: 4},
	}}
	svc, store, _ := newThreadSyncForTest(t, chatClient)
	ctx := context.Background()

	registerThread(t, store, "g1", "m1")
	require.NoError(t, svc.SyncReply(ctx, replyEvent(2)))

	thread, err := store.Get(ctx, docstore.ThreadKey("g1", "m1"))
	require.NoError(t, err)
	require.Equal(t, int64(4), thread.Int(docstore.FieldReplyCount))
	require.Equal(t, "updated text", thread[docstore.FieldText])
	require.Equal(t, "u1", thread[docstore.FieldCreatorID])
	// Fields owned by the registration survive the merge.
	require.Equal(t, "goal", thread[docstore.FieldType])
	require.Equal(t, "p1", thread[docstore.FieldPlanID])

	participants, err := store.Members(ctx, docstore.ThreadKey("g1", "m1"), docstore.SetParticipantIDs)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"u1", "u2"}, participants)

	for member, wantUnread := range map[string]string{"u1": "false", "u2": "true", "u3": "true"} {
		marker, err := store.Get(ctx, docstore.UnreadThreadKey("g1", "m1", member))
		require.NoError(t, err)
		require.Equal(t, wantUnread, marker[docstore.FieldIsUnread], "member %s", member)
		require.Equal(t, "g1", marker[docstore.FieldGroupID])
		require.Equal(t, "m1", marker[docstore.FieldThreadID])
		require.Equal(t, "p1", marker[docstore.FieldPlanID])
		require.Equal(t, "2026-08-01T00:00:00Z", marker[docstore.FieldThreadStart])
	}
}

func TestSyncReplyReplyCountIsMonotonicAcrossDeliveryOrder(t *testing.T) {
	chatClient := &stubChatClient{messages: map[string]chat.Message{
		"m1": {ID: "m1", Text: "text", UserID: "u1", ReplyCount: 5},
	}}
	svc, store, _ := newThreadSyncForTest(t, chatClient)
	ctx := context.Background()

	registerThread(t, store, "g1", "m1")
	require.NoError(t, svc.SyncReply(ctx, replyEvent(7)))

	// An older webhook arrives late with lower counts.
	chatClient.messages["m1"] = chat.Message{ID: "m1", Text: "text", UserID: "u1", ReplyCount: 2}
	require.NoError(t, svc.SyncReply(ctx, replyEvent(1)))

	thread, err := store.Get(ctx, docstore.ThreadKey("g1", "m1"))
	require.NoError(t, err)
	require.Equal(t, int64(7), thread.Int(docstore.FieldReplyCount))
}

func TestSyncReplyIsIdempotentUnderRedelivery(t *testing.T) {
	chatClient := &stubChatClient{messages: map[string]chat.Message{
		"m1": {ID: "m1", Text: "text", UserID: "u1", ReplyCount: 3},
	}}
	svc, store, _ := newThreadSyncForTest(t, chatClient)
	ctx := context.Background()

	registerThread(t, store, "g1", "m1")
	require.NoError(t, svc.SyncReply(ctx, replyEvent(3)))
	first, err := store.Get(ctx, docstore.ThreadKey("g1", "m1"))
	require.NoError(t, err)

	require.NoError(t, svc.SyncReply(ctx, replyEvent(3)))
	second, err := store.Get(ctx, docstore.ThreadKey("g1", "m1"))
	require.NoError(t, err)

	require.Equal(t, first.Int(docstore.FieldReplyCount), second.Int(docstore.FieldReplyCount))
	marker, err := store.Get(ctx, docstore.UnreadThreadKey("g1", "m1", "u2"))
	require.NoError(t, err)
	require.Equal(t, "true", marker[docstore.FieldIsUnread])
}

func TestSyncReplyAbandonsOnVendorLookupFailure(t *testing.T) {
	chatClient := &stubChatClient{err: errors.New("vendor unavailable")}
	svc, store, _ := newThreadSyncForTest(t, chatClient)
	ctx := context.Background()

	registerThread(t, store, "g1", "m1")

	// Not fatal: the event is abandoned and a later webhook self-corrects.
	require.NoError(t, svc.SyncReply(ctx, replyEvent(3)))

	thread, err := store.Get(ctx, docstore.ThreadKey("g1", "m1"))
	require.NoError(t, err)
	require.Equal(t, int64(0), thread.Int(docstore.FieldReplyCount))
	require.Equal(t, "thread start", thread[docstore.FieldText])
}

func TestReactGroupActionIsIdempotent(t *testing.T) {
	chatClient := &stubChatClient{messages: map[string]chat.Message{}}
	svc, _, actions := newThreadSyncForTest(t, chatClient)
	ctx := context.Background()

	require.NoError(t, svc.ReactGroupAction(ctx, "g1", "act1", "u1"))
	require.NoError(t, svc.ReactGroupAction(ctx, "g1", "act1", "u1"))
	require.Equal(t, []string{"u1"}, actions.reactions["act1"])
}

func TestReactGroupActionUnknownActionIsDropped(t *testing.T) {
	chatClient := &stubChatClient{messages: map[string]chat.Message{}}
	store := newStoreForTest(t)
	groups := &memoryGroupRepo{groups: map[string][]string{}}
	actions := &memoryActionRepo{reactions: map[string][]string{}, missing: true}
	svc := NewThreadSyncService(store, chatClient, groups, actions, zerolog.Nop())

	require.NoError(t, svc.ReactGroupAction(context.Background(), "g1", "missing", "u1"))
}
