package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier_Invalidate(t *testing.T) {
	var received Invalidation
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL)
	inv := Invalidation{
		Season:        2025,
		Week:          3,
		PublicationID: "pub-1",
		PublishedAt:   time.Date(2025, 9, 12, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, n.Invalidate(context.Background(), inv))
	assert.Equal(t, inv, received)
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL)
	err := n.Invalidate(context.Background(), Invalidation{Season: 2025, Week: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestWebhookNotifier_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	n := NewWebhook(srv.URL)
	err := n.Invalidate(context.Background(), Invalidation{Season: 2025, Week: 3})
	require.Error(t, err)
}

func TestNoopNotifier(t *testing.T) {
	assert.NoError(t, NoopNotifier{}.Invalidate(context.Background(), Invalidation{}))
}
