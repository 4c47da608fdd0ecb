package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	comapeo "github.com/digidem/comapeo-cloud"
)

func fakeEngine(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/device", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"deviceId":   "device-1",
			"name":       "Test Server",
			"deviceType": comapeo.DeviceTypeSelfHostedServer,
		})
	})

	mux.HandleFunc("/v1/projects", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "GET":
			json.NewEncoder(w).Encode([]comapeo.ProjectInfo{
				{ID: "rivers-id", Name: "Rivers"},
			})
		case "PUT":
			var body struct {
				ProjectKey  string `json:"projectKey"`
				ProjectName string `json:"projectName"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			json.NewEncoder(w).Encode(map[string]string{"projectId": "created-id"})
		}
	})

	mux.HandleFunc("/v1/projects/rivers-id", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(comapeo.ProjectInfo{ID: "rivers-id", Name: "Rivers"})
	})

	mux.HandleFunc("/v1/projects/ghost-id", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	mux.HandleFunc("/v1/projects/rivers-id/sync", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/v1/projects/rivers-id/replicate", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)

		// Echo a single frame back.
		ctx := r.Context()
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		conn.Write(ctx, typ, data)
		conn.Close(websocket.StatusNormalClosure, "")
	})

	return httptest.NewServer(mux)
}

func TestClient_DeviceAndProjects(t *testing.T) {
	srv := fakeEngine(t)
	defer srv.Close()

	ctx := context.Background()
	client, err := NewClient(ctx, srv.Client(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "device-1", client.DeviceID())

	infos, err := client.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "rivers-id", infos[0].ID)

	project, err := client.Project(ctx, "rivers-id")
	require.NoError(t, err)
	assert.Equal(t, "Rivers", project.Name())
	assert.NoError(t, project.StartSync(ctx))
}

func TestClient_ProjectNotFound(t *testing.T) {
	srv := fakeEngine(t)
	defer srv.Close()

	ctx := context.Background()
	client, err := NewClient(ctx, srv.Client(), srv.URL)
	require.NoError(t, err)

	_, err = client.Project(ctx, "ghost-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, comapeo.ErrProjectNotFound)
}

func TestClient_CreateProject(t *testing.T) {
	srv := fakeEngine(t)
	defer srv.Close()

	ctx := context.Background()
	client, err := NewClient(ctx, srv.Client(), srv.URL)
	require.NoError(t, err)

	id, err := client.CreateProject(ctx, comapeo.ProjectConfig{
		Key:  make([]byte, comapeo.ProjectKeySize),
		Name: "Forests",
	})
	require.NoError(t, err)
	assert.Equal(t, "created-id", id)
}

func TestClient_Replicate(t *testing.T) {
	srv := fakeEngine(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewClient(ctx, srv.Client(), srv.URL)
	require.NoError(t, err)

	project, err := client.Project(ctx, "rivers-id")
	require.NoError(t, err)

	stream, err := project.Replicate(ctx)
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Write([]byte("replication-frame"))
	require.NoError(t, err)

	buf := make([]byte, 32)
	n, err := stream.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "replication-frame", string(buf[:n]))
}

func TestNewClient_EngineDown(t *testing.T) {
	srv := fakeEngine(t)
	srv.Close()

	_, err := NewClient(context.Background(), nil, srv.URL)
	require.Error(t, err)
}

var _ comapeo.Engine = (*Client)(nil)
