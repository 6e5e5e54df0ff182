package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/groupflow/activity-sync-api/internal/chat"
	"github.com/groupflow/activity-sync-api/internal/event"
	"github.com/groupflow/activity-sync-api/internal/models"
	"github.com/groupflow/activity-sync-api/internal/observability"
	"github.com/groupflow/activity-sync-api/internal/repository"
)

// BadgePusher delivers a computed badge value to the device notification
// surface. The engine only owns the integer.
type BadgePusher interface {
	PushBadgeCount(ctx context.Context, userID string, count int) error
}

// BadgeService computes rolled-up notification badge values and processes
// queued badge recomputation tasks.
type BadgeService interface {
	ComputeBadge(ctx context.Context, userID, groupID string) (int, error)
	ComputeForUser(ctx context.Context, userID string) (int, error)
	Process(ctx context.Context, task event.BadgeTask)
	Schedule(ctx context.Context, task event.BadgeTask)
	Stop()
}

type badgeService struct {
	actions  repository.GroupActionRepository
	users    repository.UserRepository
	groups   repository.GroupRepository
	chat     chat.Client
	pusher   BadgePusher
	window   time.Duration
	limit    int
	debounce time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

// NewBadgeService constructs the badge aggregator.
func NewBadgeService(actions repository.GroupActionRepository, users repository.UserRepository, groups repository.GroupRepository, chatClient chat.Client, pusher BadgePusher, window, debounce time.Duration, limit int, logger zerolog.Logger) BadgeService {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	if limit <= 0 {
		limit = 100
	}

	return &badgeService{
		actions:  actions,
		users:    users,
		groups:   groups,
		chat:     chatClient,
		pusher:   pusher,
		window:   window,
		limit:    limit,
		debounce: debounce,
		logger:   logger.With().Str("component", "badge_service").Logger(),
		now:      time.Now,
		pending:  map[string]*time.Timer{},
	}
}

// ComputeBadge returns the badge value for one user within one group: the
// group-action score (0, 1 or 2 for unread prayer/gratitude items in the
// recent window) plus the number of 2-person direct-message channels with
// unread messages. A user with no resolvable group scores zero, not an
// error; the caller cannot distinguish "no notifications" from "nothing to
// check".
func (s *badgeService) ComputeBadge(ctx context.Context, userID, groupID string) (int, error) {
	if userID == "" || groupID == "" {
		return 0, nil
	}

	actionScore, err := s.groupActionScore(ctx, userID, groupID)
	if err != nil {
		return 0, err
	}

	directScore, err := s.directMessageScore(ctx, userID, groupID)
	if err != nil {
		return 0, err
	}

	return actionScore + directScore, nil
}

// ComputeForUser resolves the user's default group and computes the badge
// against it.
func (s *badgeService) ComputeForUser(ctx context.Context, userID string) (int, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return s.ComputeBadge(ctx, userID, user.DefaultGroupID)
}

func (s *badgeService) groupActionScore(ctx context.Context, userID, groupID string) (int, error) {
	since := s.now().Add(-s.window)
	actions, err := s.actions.ListRecent(ctx, groupID, since, s.limit)
	if err != nil {
		return 0, fmt.Errorf("list recent group actions: %w", err)
	}

	var unreadPrayer, unreadGratitude bool
	for _, action := range actions {
		if action.ViewedBy(userID) {
			continue
		}
		if action.Type == models.GroupActionTypePrayer {
			unreadPrayer = true
		} else {
			unreadGratitude = true
		}
	}

	switch {
	case unreadPrayer && unreadGratitude:
		return 2, nil
	case unreadPrayer || unreadGratitude:
		return 1, nil
	default:
		return 0, nil
	}
}

func (s *badgeService) directMessageScore(ctx context.Context, userID, groupID string) (int, error) {
	members, err := s.groups.Members(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("load group members: %w", err)
	}

	// Only direct messages with fellow group members count toward the
	// badge; channels with outsiders belong to another home screen.
	others := make([]string, 0, len(members))
	for _, member := range members {
		if member != userID {
			others = append(others, member)
		}
	}
	if len(others) == 0 {
		return 0, nil
	}

	channels, err := s.chat.QueryChannels(ctx, chat.ChannelFilter{
		Type:        "messaging",
		Member:      userID,
		MemberCount: 2,
		GroupID:     groupID,
		MembersAny:  others,
	})
	if err != nil {
		return 0, fmt.Errorf("query direct message channels: %w", err)
	}

	count := 0
	for _, channel := range channels {
		if channel.UnreadFor(userID) > 0 {
			count++
		}
	}
	return count, nil
}

// Process recomputes and pushes badges for the task's users. Only users
// whose default group matches the task's group are recomputed; the others
// belong to a different home screen and would see a misleading number.
func (s *badgeService) Process(ctx context.Context, task event.BadgeTask) {
	users, err := s.users.FindByIDs(ctx, task.Users)
	if err != nil {
		s.logger.Error().Err(err).Str("group_id", task.GroupID).Msg("failed to resolve badge task users")
		return
	}

	for _, user := range users {
		if user.DefaultGroupID != task.GroupID {
			continue
		}

		count, err := s.ComputeBadge(ctx, user.ID, task.GroupID)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("user_id", user.ID).
				Str("group_id", task.GroupID).
				Msg("badge computation failed")
			continue
		}

		if err := s.pusher.PushBadgeCount(ctx, user.ID, count); err != nil {
			s.logger.Error().Err(err).Str("user_id", user.ID).Msg("badge push failed")
			continue
		}
		observability.BadgeRecomputations().Inc()
	}
}

// Schedule coalesces bursts of badge tasks per user: each new task resets
// the user's debounce timer, and only the last group wins.
func (s *badgeService) Schedule(ctx context.Context, task event.BadgeTask) {
	if s.debounce <= 0 {
		s.Process(ctx, task)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	for _, userID := range task.Users {
		userID := userID
		if timer, ok := s.pending[userID]; ok {
			timer.Stop()
		}
		s.pending[userID] = time.AfterFunc(s.debounce, func() {
			s.mu.Lock()
			delete(s.pending, userID)
			s.mu.Unlock()
			s.Process(ctx, event.BadgeTask{Users: []string{userID}, GroupID: task.GroupID})
		})
	}
}

// Stop cancels all pending debounce timers.
func (s *badgeService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for userID, timer := range s.pending {
		timer.Stop()
		delete(s.pending, userID)
	}
}
