package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/groupflow/activity-sync-api/internal/docstore"
	"github.com/groupflow/activity-sync-api/internal/event"
	"github.com/groupflow/activity-sync-api/internal/observability"
	"github.com/groupflow/activity-sync-api/internal/repository"
)

// FollowUpService reacts to follow-up create/update events and keeps the
// action step aggregate and per-member unread counters in sync.
type FollowUpService interface {
	event.Consumer
}

type followUpService struct {
	store  docstore.Store
	groups repository.GroupRepository
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewFollowUpService constructs the follow-up event processor.
func NewFollowUpService(store docstore.Store, groups repository.GroupRepository, logger zerolog.Logger) FollowUpService {
	return &followUpService{
		store:  store,
		groups: groups,
		logger: logger.With().Str("component", "followup_service").Logger(),
		tracer: otel.Tracer("github.com/groupflow/activity-sync-api/internal/service/followup"),
	}
}

func (s *followUpService) Handle(ctx context.Context, evt event.FollowUpEvent) error {
	switch evt.Type {
	case event.FollowUpCreated:
		return s.handleCreated(ctx, evt)
	case event.FollowUpUpdated:
		return s.handleViewed(ctx, evt)
	default:
		s.logger.Info().Str("event_type", string(evt.Type)).Msg("ignoring unknown follow-up event type")
		return nil
	}
}

// handleCreated marks the creator on the action step aggregate and fans an
// unread increment out to every other member. Each write is idempotent for
// the (key, followUpId) pair, so at-least-once redelivery converges.
func (s *followUpService) handleCreated(ctx context.Context, evt event.FollowUpEvent) error {
	ctx, span := s.tracer.Start(ctx, "followups.created", trace.WithAttributes(
		attribute.String("group.id", evt.GroupID),
		attribute.String("action_step.id", evt.ActionStepID),
		attribute.String("follow_up.id", evt.FollowUpID),
	))
	defer span.End()

	creator := evt.After.CreatorID
	members, err := s.groups.Members(ctx, evt.GroupID)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			s.logger.Info().Str("group_id", evt.GroupID).Msg("follow-up event for unknown group, dropped")
			observability.SyncEvents().WithLabelValues("followup_created", "dropped").Inc()
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("load group members: %w", err)
	}

	stepKey := docstore.ActionStepKey(evt.GroupID, evt.ActionStepID)
	if err := s.store.UnionAdd(ctx, stepKey, docstore.SetFollowUpMembers, creator); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.store.UnionAdd(ctx, stepKey, docstore.SetCompletedMembers, creator); err != nil {
		span.RecordError(err)
		return err
	}
	if _, err := s.store.IncrementOnce(ctx, stepKey, docstore.FieldFollowUpCount, 1, docstore.SetNotified, "", evt.FollowUpID); err != nil {
		span.RecordError(err)
		return err
	}

	branches := make([]fanoutBranch, 0, len(members)+1)
	for _, member := range members {
		if member == creator {
			continue
		}
		member := member
		branches = append(branches, fanoutBranch{
			id: member,
			run: func(ctx context.Context) error {
				// Counter and unread ids move in one atomic step: a
				// redelivery after the member already viewed the follow-up
				// must touch neither, or count and |unreadFollowUps|
				// drift apart for good.
				key := docstore.UnreadCounterKey(evt.GroupID, evt.ActionStepID, member)
				_, err := s.store.IncrementOnce(ctx, key, docstore.FieldCount, 1, docstore.SetNotified, docstore.SetUnreadFollowUps, evt.FollowUpID)
				return err
			},
		})
	}

	// The creator gets a zero-count document so badge queries never have to
	// distinguish "absent" from "zero".
	branches = append(branches, fanoutBranch{
		id: creator,
		run: func(ctx context.Context) error {
			_, err := s.store.Increment(ctx, docstore.UnreadCounterKey(evt.GroupID, evt.ActionStepID, creator), docstore.FieldCount, 0)
			return err
		},
	})

	failed := runFanout(ctx, branches, func(memberID string, err error) {
		observability.FanoutFailures().WithLabelValues("followup").Inc()
		s.logger.Error().
			Err(err).
			Str("group_id", evt.GroupID).
			Str("action_step_id", evt.ActionStepID).
			Str("follow_up_id", evt.FollowUpID).
			Str("member_id", memberID).
			Msg("unread counter update failed")
	})

	if len(failed) == len(branches) && len(branches) > 0 {
		observability.SyncEvents().WithLabelValues("followup_created", "error").Inc()
		err := fmt.Errorf("all %d fan-out branches failed: %w", len(branches), errors.Join(failed...))
		span.RecordError(err)
		return err
	}

	observability.SyncEvents().WithLabelValues("followup_created", "ok").Inc()
	return nil
}

// handleViewed clears the unread state for viewers added by this update.
// The decrement clamps at zero; the counter is a best-effort cache and a
// negative value must never be surfaced.
func (s *followUpService) handleViewed(ctx context.Context, evt event.FollowUpEvent) error {
	added := evt.NewViewers()
	if len(added) == 0 {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "followups.viewed", trace.WithAttributes(
		attribute.String("group.id", evt.GroupID),
		attribute.String("action_step.id", evt.ActionStepID),
		attribute.String("follow_up.id", evt.FollowUpID),
		attribute.Int("viewers.added", len(added)),
	))
	defer span.End()

	branches := make([]fanoutBranch, 0, len(added))
	for _, viewer := range added {
		viewer := viewer
		branches = append(branches, fanoutBranch{
			id: viewer,
			run: func(ctx context.Context) error {
				key := docstore.UnreadCounterKey(evt.GroupID, evt.ActionStepID, viewer)
				if _, err := s.store.ClampedDecrement(ctx, key, docstore.FieldCount, 1); err != nil {
					return err
				}
				return s.store.UnionRemove(ctx, key, docstore.SetUnreadFollowUps, evt.FollowUpID)
			},
		})
	}

	failed := runFanout(ctx, branches, func(memberID string, err error) {
		observability.FanoutFailures().WithLabelValues("followup").Inc()
		s.logger.Error().
			Err(err).
			Str("group_id", evt.GroupID).
			Str("action_step_id", evt.ActionStepID).
			Str("follow_up_id", evt.FollowUpID).
			Str("member_id", memberID).
			Msg("unread counter clear failed")
	})

	if len(failed) == len(branches) {
		observability.SyncEvents().WithLabelValues("followup_updated", "error").Inc()
		err := fmt.Errorf("all %d fan-out branches failed: %w", len(branches), errors.Join(failed...))
		span.RecordError(err)
		return err
	}

	observability.SyncEvents().WithLabelValues("followup_updated", "ok").Inc()
	return nil
}

// fanoutBranch is one member-scoped write within a fan-out.
type fanoutBranch struct {
	id  string
	run func(ctx context.Context) error
}

// runFanout executes all branches concurrently and joins them, collecting
// failures instead of cancelling siblings. Branches target disjoint keys and
// have no ordering dependency on each other.
func runFanout(ctx context.Context, branches []fanoutBranch, onError func(id string, err error)) []error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []error
	)

	for _, branch := range branches {
		branch := branch
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := branch.run(ctx); err != nil {
				onError(branch.id, err)
				mu.Lock()
				failed = append(failed, fmt.Errorf("%s: %w", branch.id, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return failed
}
