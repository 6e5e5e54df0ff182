package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/groupflow/activity-sync-api/internal/chat"
	"github.com/groupflow/activity-sync-api/internal/docstore"
	"github.com/groupflow/activity-sync-api/internal/observability"
	"github.com/groupflow/activity-sync-api/internal/repository"
)

// ThreadReplyEvent is a classified "new threaded reply" webhook event.
type ThreadReplyEvent struct {
	GroupID            string
	ParentMessageID    string
	SenderID           string
	ReplyText          string
	Participants       []string
	ReportedReplyCount int
}

// ThreadSyncService reconciles thread summaries and per-member unread
// markers from chat webhook events.
type ThreadSyncService interface {
	SyncReply(ctx context.Context, evt ThreadReplyEvent) error
	ReactGroupAction(ctx context.Context, groupID, actionID, senderID string) error
}

type threadSyncService struct {
	store   docstore.Store
	chat    chat.Client
	groups  repository.GroupRepository
	actions repository.GroupActionRepository
	logger  zerolog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewThreadSyncService constructs the thread sync processor.
func NewThreadSyncService(store docstore.Store, chatClient chat.Client, groups repository.GroupRepository, actions repository.GroupActionRepository, logger zerolog.Logger) ThreadSyncService {
	return &threadSyncService{
		store:   store,
		chat:    chatClient,
		groups:  groups,
		actions: actions,
		logger:  logger.With().Str("component", "threadsync_service").Logger(),
		tracer:  otel.Tracer("github.com/groupflow/activity-sync-api/internal/service/threadsync"),
		now:     time.Now,
	}
}

// SyncReply upserts the thread summary and fans unread markers out to every
// group member. All writes are merge-to-final-state, so any delivery order
// or redelivery of the same event converges.
func (s *threadSyncService) SyncReply(ctx context.Context, evt ThreadReplyEvent) error {
	ctx, span := s.tracer.Start(ctx, "threads.sync_reply", trace.WithAttributes(
		attribute.String("group.id", evt.GroupID),
		attribute.String("thread.id", evt.ParentMessageID),
	))
	defer span.End()

	threadKey := docstore.ThreadKey(evt.GroupID, evt.ParentMessageID)
	exists, err := s.store.Exists(ctx, threadKey)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !exists {
		// The thread was never registered by the CRUD layer. Defined as an
		// ignore outcome, not an error.
		s.logger.Info().
			Str("group_id", evt.GroupID).
			Str("thread_id", evt.ParentMessageID).
			Msg("reply for unknown thread, dropped")
		observability.SyncEvents().WithLabelValues("thread_reply", "dropped").Inc()
		return nil
	}

	stored, err := s.store.Get(ctx, threadKey)
	if err != nil {
		span.RecordError(err)
		return err
	}

	// Webhook payloads can be stale or incomplete; the vendor lookup is the
	// authoritative source for text and reply count. On lookup failure the
	// sync is abandoned for this event; a later webhook for the same thread
	// self-corrects.
	message, err := s.chat.GetMessage(ctx, evt.ParentMessageID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("thread_id", evt.ParentMessageID).
			Msg("authoritative message lookup failed, sync abandoned")
		observability.SyncEvents().WithLabelValues("thread_reply", "abandoned").Inc()
		return nil
	}

	replyCount := int64(evt.ReportedReplyCount)
	if int64(message.ReplyCount) > replyCount {
		replyCount = int64(message.ReplyCount)
	}
	if replyCount < 1 {
		replyCount = 1
	}
	if _, err := s.store.SetMax(ctx, threadKey, docstore.FieldReplyCount, replyCount); err != nil {
		span.RecordError(err)
		return err
	}

	threadType := stored[docstore.FieldType]
	if threadType == "" {
		threadType = "thread"
	}
	updated := s.now().UTC().Format(time.RFC3339)
	if err := s.store.MergeSet(ctx, threadKey, map[string]interface{}{
		docstore.FieldText:      message.Text,
		docstore.FieldCreatorID: message.UserID,
		docstore.FieldType:      threadType,
		docstore.FieldUpdated:   updated,
	}); err != nil {
		span.RecordError(err)
		return err
	}
	if len(evt.Participants) > 0 {
		if err := s.store.UnionAdd(ctx, threadKey, docstore.SetParticipantIDs, evt.Participants...); err != nil {
			span.RecordError(err)
			return err
		}
	}

	members, err := s.groups.Members(ctx, evt.GroupID)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			s.logger.Info().Str("group_id", evt.GroupID).Msg("thread reply for unknown group, fan-out skipped")
			observability.SyncEvents().WithLabelValues("thread_reply", "ok").Inc()
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("load group members: %w", err)
	}

	branches := make([]fanoutBranch, 0, len(members))
	for _, member := range members {
		member := member
		branches = append(branches, fanoutBranch{
			id: member,
			run: func(ctx context.Context) error {
				return s.store.MergeSet(ctx, docstore.UnreadThreadKey(evt.GroupID, evt.ParentMessageID, member), map[string]interface{}{
					docstore.FieldUID:         member,
					docstore.FieldGroupID:     evt.GroupID,
					docstore.FieldThreadID:    evt.ParentMessageID,
					docstore.FieldPlanID:      stored[docstore.FieldPlanID],
					docstore.FieldThreadStart: stored[docstore.FieldStartDate],
					docstore.FieldIsUnread:    strconv.FormatBool(member != evt.SenderID),
					docstore.FieldUpdated:     updated,
				})
			},
		})
	}

	failed := runFanout(ctx, branches, func(memberID string, err error) {
		observability.FanoutFailures().WithLabelValues("thread").Inc()
		s.logger.Error().
			Err(err).
			Str("group_id", evt.GroupID).
			Str("thread_id", evt.ParentMessageID).
			Str("member_id", memberID).
			Msg("unread thread upsert failed")
	})

	if len(failed) == len(branches) && len(branches) > 0 {
		observability.SyncEvents().WithLabelValues("thread_reply", "error").Inc()
		err := fmt.Errorf("all %d fan-out branches failed: %w", len(branches), errors.Join(failed...))
		span.RecordError(err)
		return err
	}

	observability.SyncEvents().WithLabelValues("thread_reply", "ok").Inc()
	return nil
}

// ReactGroupAction records a reaction carried as a structured message
// attachment. Re-applying the same reaction is a no-op.
func (s *threadSyncService) ReactGroupAction(ctx context.Context, groupID, actionID, senderID string) error {
	if err := s.actions.AddReaction(ctx, groupID, actionID, senderID); err != nil {
		if errors.Is(err, repository.ErrGroupActionNotFound) {
			s.logger.Info().
				Str("group_id", groupID).
				Str("action_id", actionID).
				Msg("reaction for unknown group action, dropped")
			return nil
		}
		return fmt.Errorf("record group action reaction: %w", err)
	}
	return nil
}
