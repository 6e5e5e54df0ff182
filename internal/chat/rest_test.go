package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/groupflow/activity-sync-api/internal/chat"
)

func newVendorServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *chat.RESTClient) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := chat.NewRESTClient(chat.RESTConfig{BaseURL: server.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return server, client
}

func TestRESTClientRequiresBaseURL(t *testing.T) {
	_, err := chat.NewRESTClient(chat.RESTConfig{})
	require.Error(t, err)
}

func TestGetMessage(t *testing.T) {
	_, client := newVendorServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/messages/m1", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]chat.Message{
			"message": {ID: "m1", Text: "thread root", UserID: "u1", ReplyCount: 4},
		})
	})

	msg, err := client.GetMessage(context.Background(), "m1")
	require.NoError(t, err)
	require.Equal(t, chat.Message{ID: "m1", Text: "thread root", UserID: "u1", ReplyCount: 4}, msg)
}

func TestGetMessageUnexpectedStatus(t *testing.T) {
	_, client := newVendorServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetMessage(context.Background(), "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 404")
}

func TestQueryChannels(t *testing.T) {
	_, client := newVendorServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/channels/query", r.URL.Path)

		var filter chat.ChannelFilter
		require.NoError(t, json.NewDecoder(r.Body).Decode(&filter))
		require.Equal(t, "messaging", filter.Type)
		require.Equal(t, "u1", filter.Member)
		require.Equal(t, 2, filter.MemberCount)

		json.NewEncoder(w).Encode(map[string][]chat.Channel{
			"channels": {
				{ID: "c1", GroupID: "g1", UnreadByUser: map[string]int{"u1": 2}},
			},
		})
	})

	channels, err := client.QueryChannels(context.Background(), chat.ChannelFilter{
		Type:        "messaging",
		Member:      "u1",
		MemberCount: 2,
	})
	require.NoError(t, err)
	require.Len(t, channels, 1)
	require.Equal(t, "g1", channels[0].GroupID)
	require.Equal(t, 2, channels[0].UnreadFor("u1"))
	require.Zero(t, channels[0].UnreadFor("u2"))
}
