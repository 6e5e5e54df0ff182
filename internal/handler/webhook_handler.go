package handler

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/groupflow/activity-sync-api/internal/chat"
	"github.com/groupflow/activity-sync-api/internal/dto"
	"github.com/groupflow/activity-sync-api/internal/event"
	"github.com/groupflow/activity-sync-api/internal/middleware"
	"github.com/groupflow/activity-sync-api/internal/observability"
	"github.com/groupflow/activity-sync-api/internal/service"
)

// TrustedAgentHeader carries the shared identifier the chat vendor sends on
// every webhook call.
const TrustedAgentHeader = "Target-Agent"

const privateChannelPrefix = "private-"

// WebhookHandler receives chat vendor webhooks, verifies their origin and
// routes them to thread sync or badge scheduling.
type WebhookHandler struct {
	threads      service.ThreadSyncService
	badges       event.BadgePublisher
	chat         chat.Client
	trustedAgent string
	validate     *validator.Validate
	logger       zerolog.Logger
}

// NewWebhookHandler constructs the webhook gateway.
func NewWebhookHandler(threads service.ThreadSyncService, badges event.BadgePublisher, chatClient chat.Client, trustedAgent string, validate *validator.Validate, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		threads:      threads,
		badges:       badges,
		chat:         chatClient,
		trustedAgent: trustedAgent,
		validate:     validate,
		logger:       logger.With().Str("component", "webhook_handler").Logger(),
	}
}

// Register binds the webhook routes.
func (h *WebhookHandler) Register(router fiber.Router) {
	router.Post("/chat", h.handleChatEvent)
}

func (h *WebhookHandler) handleChatEvent(c *fiber.Ctx) error {
	// Untrusted probes get the same success response as real events so they
	// learn nothing and never trigger vendor retry storms.
	if c.Get(TrustedAgentHeader) != h.trustedAgent {
		observability.WebhookEvents().WithLabelValues("untrusted").Inc()
		h.logger.Info().Str("ip", c.IP()).Msg("webhook call with untrusted agent header, dropped")
		return ack(c)
	}

	var evt dto.WebhookEvent
	if err := c.BodyParser(&evt); err != nil {
		observability.WebhookEvents().WithLabelValues("invalid").Inc()
		h.logger.Info().Err(err).Msg("unparseable webhook body, dropped")
		return ack(c)
	}
	if err := h.validate.Struct(evt); err != nil {
		observability.WebhookEvents().WithLabelValues("invalid").Inc()
		h.logger.Info().Err(err).Msg("invalid webhook payload, dropped")
		return ack(c)
	}

	if evt.Type != dto.WebhookEventMessageNew {
		observability.WebhookEvents().WithLabelValues("ignored").Inc()
		return ack(c)
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))

	if evt.Message.Type == dto.MessageTypeReply {
		err := h.threads.SyncReply(ctx, service.ThreadReplyEvent{
			GroupID:            evt.ChannelID,
			ParentMessageID:    evt.Message.ParentID,
			SenderID:           evt.Message.User.ID,
			ReplyText:          evt.Message.Text,
			Participants:       evt.ParticipantIDs(),
			ReportedReplyCount: evt.Message.ReplyCount,
		})
		if err != nil {
			// The vendor redelivers on non-2xx; every sync write is
			// idempotent, so the retry converges.
			observability.WebhookEvents().WithLabelValues("error").Inc()
			return fiber.NewError(fiber.StatusInternalServerError, "thread sync failed")
		}
	}

	if strings.HasPrefix(evt.ChannelID, privateChannelPrefix) {
		h.scheduleBadgeUpdate(ctx, evt)
	}

	h.recordReaction(ctx, evt)

	observability.WebhookEvents().WithLabelValues("processed").Inc()
	return ack(c)
}

// scheduleBadgeUpdate publishes a badge recomputation task for the message
// receivers. Channels without a resolvable group are structurally invalid
// events: logged and dropped, never retried.
func (h *WebhookHandler) scheduleBadgeUpdate(ctx context.Context, evt dto.WebhookEvent) {
	receivers := evt.ReceiverIDs()
	if len(receivers) == 0 {
		h.logger.Info().Str("channel_id", evt.ChannelID).Msg("badge update without receivers, dropped")
		return
	}

	groupID, err := h.resolveGroupID(ctx, evt.ChannelID)
	if err != nil {
		h.logger.Error().Err(err).Str("channel_id", evt.ChannelID).Msg("channel group lookup failed")
		return
	}
	if groupID == "" {
		h.logger.Info().Str("channel_id", evt.ChannelID).Msg("badge update for channel without group, dropped")
		return
	}

	if err := h.badges.PublishBadgeTask(ctx, event.BadgeTask{Users: receivers, GroupID: groupID}); err != nil {
		h.logger.Error().Err(err).Str("group_id", groupID).Msg("failed to publish badge task")
	}
}

// resolveGroupID maps a channel to its group: private channels carry the
// group on their stored attributes, everything else uses the channel id as
// the group id.
func (h *WebhookHandler) resolveGroupID(ctx context.Context, channelID string) (string, error) {
	if !strings.HasPrefix(channelID, privateChannelPrefix) {
		return channelID, nil
	}

	channels, err := h.chat.QueryChannels(ctx, chat.ChannelFilter{ID: channelID})
	if err != nil {
		return "", err
	}
	if len(channels) == 0 {
		return "", nil
	}
	return channels[0].GroupID, nil
}

func (h *WebhookHandler) recordReaction(ctx context.Context, evt dto.WebhookEvent) {
	if len(evt.Message.Attachments) == 0 {
		return
	}

	attachment := evt.Message.Attachments[0]
	if attachment.Type != dto.AttachmentGroupAction {
		return
	}

	if err := h.threads.ReactGroupAction(ctx, attachment.GroupID, attachment.ID, evt.Message.User.ID); err != nil {
		h.logger.Error().
			Err(err).
			Str("group_id", attachment.GroupID).
			Str("action_id", attachment.ID).
			Msg("failed to record group action reaction")
	}
}

func ack(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(true)
}
