package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/groupflow/activity-sync-api/internal/chat"
	"github.com/groupflow/activity-sync-api/internal/dto"
	"github.com/groupflow/activity-sync-api/internal/event"
	"github.com/groupflow/activity-sync-api/internal/handler"
	"github.com/groupflow/activity-sync-api/internal/service"
)

const trustedAgent = "Stream Webhook Client"

type mockThreadSync struct {
	replies   []service.ThreadReplyEvent
	reactions []string
	err       error
}

func (m *mockThreadSync) SyncReply(_ context.Context, evt service.ThreadReplyEvent) error {
	m.replies = append(m.replies, evt)
	return m.err
}

func (m *mockThreadSync) ReactGroupAction(_ context.Context, groupID, actionID, senderID string) error {
	m.reactions = append(m.reactions, groupID+"/"+actionID+"/"+senderID)
	return nil
}

type mockBadgePublisher struct {
	tasks []event.BadgeTask
	err   error
}

func (m *mockBadgePublisher) PublishBadgeTask(_ context.Context, task event.BadgeTask) error {
	m.tasks = append(m.tasks, task)
	return m.err
}

type mockChatClient struct {
	channels []chat.Channel
	err      error
}

func (m *mockChatClient) GetMessage(context.Context, string) (chat.Message, error) {
	return chat.Message{}, errors.New("not used")
}

func (m *mockChatClient) QueryChannels(context.Context, chat.ChannelFilter) ([]chat.Channel, error) {
	return m.channels, m.err
}

func newWebhookApp(threads *mockThreadSync, badges *mockBadgePublisher, chatClient chat.Client) *fiber.App {
	app := fiber.New()
	h := handler.NewWebhookHandler(threads, badges, chatClient, trustedAgent, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	h.Register(app.Group("/api/v1/webhooks"))
	return app
}

func postWebhook(t *testing.T, app *fiber.App, agent string, payload dto.WebhookEvent) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if agent != "" {
		req.Header.Set(handler.TrustedAgentHeader, agent)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func replyWebhookEvent() dto.WebhookEvent {
	return dto.WebhookEvent{
		Type:      dto.WebhookEventMessageNew,
		ChannelID: "g1",
		Message: dto.WebhookMessage{
			ID:         "r1",
			Type:       dto.MessageTypeReply,
			Text:       "a reply",
			User:       dto.WebhookUser{ID: "u1"},
			ParentID:   "m1",
			ReplyCount: 3,
		},
		ThreadParticipants: []dto.WebhookUser{{ID: "u1"}, {ID: "u2"}},
	}
}

func TestWebhookRejectsUntrustedAgentSilently(t *testing.T) {
	threads := &mockThreadSync{}
	badges := &mockBadgePublisher{}
	app := newWebhookApp(threads, badges, &mockChatClient{})

	resp := postWebhook(t, app, "curl/8.0", replyWebhookEvent())

	// Untrusted probes get the same success status as real events.
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, threads.replies)
	require.Empty(t, badges.tasks)
}

func TestWebhookRoutesReplyToThreadSync(t *testing.T) {
	threads := &mockThreadSync{}
	badges := &mockBadgePublisher{}
	app := newWebhookApp(threads, badges, &mockChatClient{})

	resp := postWebhook(t, app, trustedAgent, replyWebhookEvent())

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, threads.replies, 1)
	require.Equal(t, service.ThreadReplyEvent{
		GroupID:            "g1",
		ParentMessageID:    "m1",
		SenderID:           "u1",
		ReplyText:          "a reply",
		Participants:       []string{"u1", "u2"},
		ReportedReplyCount: 3,
	}, threads.replies[0])
	require.Empty(t, badges.tasks)
}

func TestWebhookThreadSyncFailureReturnsServerError(t *testing.T) {
	threads := &mockThreadSync{err: errors.New("all fan-out branches failed")}
	app := newWebhookApp(threads, &mockBadgePublisher{}, &mockChatClient{})

	resp := postWebhook(t, app, trustedAgent, replyWebhookEvent())
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestWebhookPrivateChannelSchedulesBadgeUpdate(t *testing.T) {
	threads := &mockThreadSync{}
	badges := &mockBadgePublisher{}
	chatClient := &mockChatClient{channels: []chat.Channel{{ID: "private-abc", GroupID: "g7"}}}
	app := newWebhookApp(threads, badges, chatClient)

	evt := dto.WebhookEvent{
		Type:      dto.WebhookEventMessageNew,
		ChannelID: "private-abc",
		Message:   dto.WebhookMessage{ID: "dm1", Type: "regular", User: dto.WebhookUser{ID: "u1"}},
		Members:   []dto.WebhookMember{{UserID: "u1"}, {UserID: "u2"}},
	}
	resp := postWebhook(t, app, trustedAgent, evt)

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, threads.replies)
	require.Equal(t, []event.BadgeTask{{Users: []string{"u2"}, GroupID: "g7"}}, badges.tasks)
}

func TestWebhookPrivateChannelWithoutGroupIsDropped(t *testing.T) {
	badges := &mockBadgePublisher{}
	app := newWebhookApp(&mockThreadSync{}, badges, &mockChatClient{})

	evt := dto.WebhookEvent{
		Type:      dto.WebhookEventMessageNew,
		ChannelID: "private-unmapped",
		Message:   dto.WebhookMessage{ID: "dm1", Type: "regular", User: dto.WebhookUser{ID: "u1"}},
		Members:   []dto.WebhookMember{{UserID: "u1"}, {UserID: "u2"}},
	}
	resp := postWebhook(t, app, trustedAgent, evt)

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, badges.tasks)
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	threads := &mockThreadSync{}
	badges := &mockBadgePublisher{}
	app := newWebhookApp(threads, badges, &mockChatClient{})

	resp := postWebhook(t, app, trustedAgent, dto.WebhookEvent{Type: "channel.updated", ChannelID: "g1"})

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, threads.replies)
	require.Empty(t, badges.tasks)
}

func TestWebhookGroupActionAttachmentRecordsReaction(t *testing.T) {
	threads := &mockThreadSync{}
	app := newWebhookApp(threads, &mockBadgePublisher{}, &mockChatClient{})

	evt := dto.WebhookEvent{
		Type:      dto.WebhookEventMessageNew,
		ChannelID: "g1",
		Message: dto.WebhookMessage{
			ID:   "msg1",
			Type: "regular",
			User: dto.WebhookUser{ID: "u5"},
			Attachments: []dto.WebhookAttachment{
				{Type: dto.AttachmentGroupAction, ID: "act9", GroupID: "g1"},
			},
		},
	}
	resp := postWebhook(t, app, trustedAgent, evt)

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"g1/act9/u5"}, threads.reactions)
}
