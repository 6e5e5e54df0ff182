package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/groupflow/activity-sync-api/internal/event"
	"github.com/groupflow/activity-sync-api/internal/handler"
	"github.com/groupflow/activity-sync-api/internal/utils"
)

type mockBadgeService struct {
	counts map[string]int
	err    error
}

func (m *mockBadgeService) ComputeBadge(_ context.Context, userID, _ string) (int, error) {
	return m.counts[userID], m.err
}

func (m *mockBadgeService) ComputeForUser(_ context.Context, userID string) (int, error) {
	return m.counts[userID], m.err
}

func (m *mockBadgeService) Process(context.Context, event.BadgeTask)  {}
func (m *mockBadgeService) Schedule(context.Context, event.BadgeTask) {}
func (m *mockBadgeService) Stop()                                     {}

func newBadgeApp(svc *mockBadgeService) *fiber.App {
	app := fiber.New()
	handler.NewBadgeHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1/badge"))
	return app
}

func getBadge(t *testing.T, app *fiber.App, query string) (*http.Response, utils.APIResponse) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/badge/"+query, nil))
	require.NoError(t, err)

	var body utils.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestBadgeReturnsComputedCount(t *testing.T) {
	app := newBadgeApp(&mockBadgeService{counts: map[string]int{"u1": 3}})

	resp, body := getBadge(t, app, "?user_id=u1")

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, body.Success)

	payload, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "u1", payload["user_id"])
	require.Equal(t, float64(3), payload["count"])
}

func TestBadgeRequiresUserID(t *testing.T) {
	app := newBadgeApp(&mockBadgeService{})

	resp, body := getBadge(t, app, "")

	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.False(t, body.Success)
}

func TestBadgeComputeFailure(t *testing.T) {
	app := newBadgeApp(&mockBadgeService{err: errors.New("chat unavailable")})

	resp, body := getBadge(t, app, "?user_id=u1")

	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.False(t, body.Success)
}
