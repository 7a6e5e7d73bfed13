package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"metamorphosis/internal/events"
	"metamorphosis/internal/session"
	"metamorphosis/internal/storage"
)

func newTestServer() *httptest.Server {
	store := storage.NewInMemoryStore()
	broker := events.NewBroker()
	sessions := session.NewStore()
	h := session.Handler{
		Sessions: sessions,
		Orch: &session.Orchestrator{
			Designs: store,
			Events:  broker,
		},
		Events:  broker,
		Designs: store,
	}
	return httptest.NewServer(New("0", h).Handler)
}

func TestHealth(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionLifecycleRoutes(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap struct {
		ID    string `json:"id"`
		Phase string `json:"phase"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.NotEmpty(t, snap.ID)
	require.Equal(t, "empty", snap.Phase)

	get, err := http.Get(ts.URL + "/api/sessions/" + snap.ID)
	require.NoError(t, err)
	get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+snap.ID, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	require.Equal(t, http.StatusNoContent, del.StatusCode)

	gone, err := http.Get(ts.URL + "/api/sessions/" + snap.ID)
	require.NoError(t, err)
	gone.Body.Close()
	require.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestUnknownSessionRoutes(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/sessions/nope/analyze", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDesignRoutes(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/designs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	missing, err := http.Get(ts.URL + "/api/designs/nope")
	require.NoError(t, err)
	missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
}
