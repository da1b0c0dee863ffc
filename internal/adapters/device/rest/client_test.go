package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	path   string
	body   map[string]any
}

type deviceServer struct {
	mu    sync.Mutex
	calls []call
}

func (d *deviceServer) last() call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[len(d.calls)-1]
}

func newDeviceServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *deviceServer) {
	t.Helper()

	recorded := &deviceServer{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := call{method: r.Method, path: r.URL.EscapedPath()}
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &entry.body))
		}
		recorded.mu.Lock()
		recorded.calls = append(recorded.calls, entry)
		recorded.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := New(server.URL+"/", WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return client, recorded
}

func TestNewValidatesBaseURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "ftp://desk.local", "http://"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}
}

func TestListActionsCoversTierTable(t *testing.T) {
	t.Parallel()

	client, err := New("http://desk.local")
	require.NoError(t, err)

	specs, err := client.ListActions(context.Background())
	require.NoError(t, err)

	names := make(map[string]domain.ActionSpec, len(specs))
	for _, spec := range specs {
		names[spec.Name] = spec
	}
	for action := range domain.DefaultRiskPolicy().Tiers {
		assert.Contains(t, names, action)
	}

	deleteScene := names["delete_scene"]
	assert.Equal(t, "object", deleteScene.ParamSchema["type"])
	assert.Equal(t, []string{"id"}, deleteScene.ParamSchema["required"])
	_, hasRequired := names["list_scenes"].ParamSchema["required"]
	assert.False(t, hasRequired)
}

func TestExecuteRoutesCalls(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		action     string
		params     map[string]any
		wantMethod string
		wantPath   string
		wantBody   map[string]any
	}{
		{
			name:       "delete by id",
			action:     "delete_scene",
			params:     map[string]any{"id": "sc-7"},
			wantMethod: http.MethodDelete,
			wantPath:   "/api/scenes/sc-7",
		},
		{
			name:       "play by entity id",
			action:     "play_chase",
			params:     map[string]any{"chase_id": float64(4), "bpm": float64(120)},
			wantMethod: http.MethodPost,
			wantPath:   "/api/chases/4/play",
			wantBody:   map[string]any{"bpm": float64(120)},
		},
		{
			name:       "play by name is escaped",
			action:     "play_scene",
			params:     map[string]any{"name": "Warm Wash"},
			wantMethod: http.MethodPost,
			wantPath:   "/api/scenes/Warm%20Wash/play",
		},
		{
			name:       "create keeps params as body",
			action:     "create_scene",
			params:     map[string]any{"name": "Blue", "channels": map[string]any{"1": float64(255)}},
			wantMethod: http.MethodPost,
			wantPath:   "/api/scenes",
			wantBody:   map[string]any{"name": "Blue", "channels": map[string]any{"1": float64(255)}},
		},
		{
			name:       "set channel defaults universe",
			action:     "set_channel",
			params:     map[string]any{"channel": 12, "value": 200},
			wantMethod: http.MethodPut,
			wantPath:   "/api/universes/1/channels/12",
			wantBody:   map[string]any{"value": float64(200)},
		},
		{
			name:       "set channel in universe",
			action:     "set_channel",
			params:     map[string]any{"channel": "3", "value": 10, "universe": 2},
			wantMethod: http.MethodPut,
			wantPath:   "/api/universes/2/channels/3",
			wantBody:   map[string]any{"value": float64(10)},
		},
		{
			name:       "no body for bodyless post",
			action:     "blackout",
			wantMethod: http.MethodPost,
			wantPath:   "/api/blackout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, recorded := newDeviceServer(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = fmt.Fprint(w, `{"message":"ok"}`)
			})

			result, err := client.Execute(context.Background(), tt.action, tt.params)
			require.NoError(t, err)
			assert.True(t, result.Success)

			got := recorded.last()
			assert.Equal(t, tt.wantMethod, got.method)
			assert.Equal(t, tt.wantPath, got.path)
			assert.Equal(t, tt.wantBody, got.body)
		})
	}
}

func TestExecuteDoesNotMutateParams(t *testing.T) {
	t.Parallel()

	client, _ := newDeviceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	params := map[string]any{"id": "sc-1"}
	_, err := client.Execute(context.Background(), "delete_scene", params)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "sc-1"}, params)
}

func TestExecuteNormalizesResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   domain.ActionResult
	}{
		{
			name:   "object with message",
			status: http.StatusCreated,
			body:   `{"message":"Scene created","scene_id":"sc-9","name":"Blue"}`,
			want:   domain.ActionResult{Success: true, Message: "Scene created", Data: map[string]any{"scene_id": "sc-9", "name": "Blue"}},
		},
		{
			name:   "array",
			status: http.StatusOK,
			body:   `[{"id":1},{"id":2}]`,
			want: domain.ActionResult{Success: true, Data: map[string]any{
				"items": []any{map[string]any{"id": float64(1)}, map[string]any{"id": float64(2)}},
				"count": 2,
			}},
		},
		{
			name:   "error body",
			status: http.StatusNotFound,
			body:   `{"error":"scene not found"}`,
			want:   domain.ActionResult{Success: false, Error: "scene not found", Data: map[string]any{}},
		},
		{
			name:   "empty failure",
			status: http.StatusInternalServerError,
			want:   domain.ActionResult{Success: false, Error: "status 500", Data: map[string]any{}},
		},
		{
			name:   "plain text failure",
			status: http.StatusBadGateway,
			body:   "node offline",
			want:   domain.ActionResult{Success: false, Error: "node offline", Data: map[string]any{}},
		},
		{
			name:   "success flag false",
			status: http.StatusOK,
			body:   `{"success":false,"error":"universe locked"}`,
			want:   domain.ActionResult{Success: false, Error: "universe locked", Data: map[string]any{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newDeviceServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			})

			result, err := client.Execute(context.Background(), "list_scenes", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestExecuteUnknownAction(t *testing.T) {
	t.Parallel()

	client, err := New("http://desk.local")
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), "launch_fireworks", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestExecuteMissingPathParameter(t *testing.T) {
	t.Parallel()

	client, err := New("http://desk.local")
	require.NoError(t, err)

	result, err := client.Execute(context.Background(), "delete_chase", map[string]any{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, `missing parameter "id"`, result.Error)
}

func TestExecuteTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	client, err := New(base)
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), "blackout", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blackout")
}

func TestPlayback(t *testing.T) {
	t.Parallel()

	client, recorded := newDeviceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"state":"Playing","scene_id":null,"chase_id":12}`)
	})

	state, err := client.Playback(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PlaybackState{State: domain.PlaybackStatePlaying, ChaseID: "12"}, state)
	assert.Equal(t, "/api/playback/status", recorded.last().path)
}

func TestPlaybackFailure(t *testing.T) {
	t.Parallel()

	client, _ := newDeviceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Playback(context.Background())
	require.Error(t, err)
}

func TestOfflineNodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "bare array",
			body: `[{"id":1,"name":"Truss L","online":true},{"id":2,"name":"Truss R","online":false},{"id":3,"online":false}]`,
			want: []string{"Truss R", "3"},
		},
		{
			name: "wrapped",
			body: `{"nodes":[{"id":"n1","online":false},{"id":"n2"}]}`,
			want: []string{"n1"},
		},
		{
			name: "all online",
			body: `[]`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newDeviceServer(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = fmt.Fprint(w, tt.body)
			})

			nodes, err := client.OfflineNodes(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, nodes)
		})
	}
}
