package gin

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digidem/comapeo-cloud/auth"
	authhttp "github.com/digidem/comapeo-cloud/auth/http"
	"github.com/digidem/comapeo-cloud/auth/inmem"
	"github.com/digidem/comapeo-cloud/bridge"
	"github.com/digidem/comapeo-cloud/log"
	"github.com/digidem/comapeo-cloud/mock"
	"github.com/digidem/comapeo-cloud/project"
	projecthttp "github.com/digidem/comapeo-cloud/project/http"
)

const serverToken = "3d33b9b96656a8d5fa938a04167ea2a86b2e412bba54d8472529500b19d38a21"

func createRouter(t *testing.T) (*Server, *mock.Engine) {
	engine := mock.NewEngine("device-1")
	store := inmem.New()
	logger := log.NewNop()

	authorizer := auth.NewAuthorizer(serverToken, store, engine)
	service := auth.NewService(store, engine, logger)
	links := auth.NewMagicLinkService(store, engine)
	projects := project.NewService(engine, project.CapPolicy(3), "Test Server", "https://cloud.example.com", logger)

	srv := New(logger)
	authhttp.RegisterHTTPRoutes(srv, service, links, authorizer)
	projecthttp.RegisterHTTPRoutes(srv, projects, authorizer)
	srv.RegisterSyncRoute(authorizer, bridge.New(engine, logger))

	return srv, engine
}

func do(srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, req)
	return resp
}

func TestServer_Healthcheck(t *testing.T) {
	srv, _ := createRouter(t)

	resp := do(srv, "GET", "/healthcheck", "", nil)
	assert.Equal(t, 200, resp.Code)
	assert.Contains(t, resp.Body.String(), "ok")
}

func TestServer_UnknownRoute(t *testing.T) {
	srv, _ := createRouter(t)

	resp := do(srv, "GET", "/nothing/here", "", nil)
	assert.Equal(t, 404, resp.Code)
}

func TestServer_AttachAndList(t *testing.T) {
	srv, engine := createRouter(t)

	key := bytes.Repeat([]byte{0x42}, 32)
	body := map[string]interface{}{
		"projectKey":  hex.EncodeToString(key),
		"projectName": "Rivers",
	}

	var tts = []struct {
		name  string
		token string
		code  int
	}{
		{name: "no token", token: "", code: 401},
		{name: "wrong token", token: "not-the-server-token", code: 401},
		{name: "server token", token: serverToken, code: 200},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(srv, "PUT", "/projects", tt.token, body)
			assert.Equal(t, tt.code, resp.Code, resp.Body.String())
		})
	}

	// A second attach of the same key is idempotent.
	resp := do(srv, "PUT", "/projects", serverToken, body)
	require.Equal(t, 200, resp.Code)
	assert.Equal(t, 1, engine.CreatedCount)

	var attached struct {
		Data struct {
			DeviceID  string `json:"deviceId"`
			ProjectID string `json:"projectId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &attached))
	assert.Equal(t, "device-1", attached.Data.DeviceID)
	assert.NotEmpty(t, attached.Data.ProjectID)

	resp = do(srv, "GET", "/projects?name=Rivers", serverToken, nil)
	require.Equal(t, 200, resp.Code)
	assert.Contains(t, resp.Body.String(), attached.Data.ProjectID)
}

func TestServer_MalformedAttachBody(t *testing.T) {
	srv, _ := createRouter(t)

	req := httptest.NewRequest("PUT", "/projects", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+serverToken)
	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, req)

	assert.Equal(t, 400, resp.Code)
}

func TestServer_CoordinatorFlow(t *testing.T) {
	srv, engine := createRouter(t)

	register := map[string]string{"phoneNumber": "+15551234", "projectName": "Rivers"}

	resp := do(srv, "POST", "/auth/register", "", register)
	assert.Equal(t, 401, resp.Code)

	resp = do(srv, "POST", "/auth/register", serverToken, register)
	require.Equal(t, 200, resp.Code, resp.Body.String())

	resp = do(srv, "POST", "/auth/register", serverToken, register)
	assert.Equal(t, 409, resp.Code)

	// The engine hosts the project once it is attached; login needs it.
	engine.AddProject("rivers-id", "Rivers")

	resp = do(srv, "POST", "/auth/coordinator", serverToken, register)
	require.Equal(t, 200, resp.Code, resp.Body.String())

	var login struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &login))
	require.NotEmpty(t, login.Data.Token)

	// The coordinator token enrolls a member.
	enroll := map[string]string{
		"coordinatorPhoneNumber": "+15551234",
		"phoneNumber":            "+15555678",
	}
	resp = do(srv, "POST", "/auth/member", login.Data.Token, enroll)
	require.Equal(t, 200, resp.Code, resp.Body.String())

	var member struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &member))

	// The member token is scoped to Rivers.
	resp = do(srv, "POST", "/magic-link/rivers-id/create", member.Data.Token, nil)
	assert.Equal(t, 200, resp.Code, resp.Body.String())

	engine.AddProject("other-id", "Other")
	resp = do(srv, "POST", "/magic-link/other-id/create", member.Data.Token, nil)
	assert.Equal(t, 401, resp.Code)
}

func TestServer_MagicLinkRedeem(t *testing.T) {
	srv, engine := createRouter(t)

	register := map[string]string{"phoneNumber": "+15551234", "projectName": "Rivers"}
	resp := do(srv, "POST", "/auth/register", serverToken, register)
	require.Equal(t, 200, resp.Code)
	engine.AddProject("rivers-id", "Rivers")
	resp = do(srv, "POST", "/auth/coordinator", serverToken, register)
	require.Equal(t, 200, resp.Code)

	var login struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &login))

	resp = do(srv, "POST", "/magic-link/rivers-id/create", login.Data.Token, nil)
	require.Equal(t, 200, resp.Code, resp.Body.String())

	var created struct {
		Data struct {
			MagicLinkToken string `json:"magicLinkToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.MagicLinkToken)

	// A second link within the hour is rate-limited.
	resp = do(srv, "POST", "/magic-link/rivers-id/create", login.Data.Token, nil)
	assert.Equal(t, 403, resp.Code)

	// Redemption needs no credential.
	path := fmt.Sprintf("/magic-link/auth/%s", created.Data.MagicLinkToken)
	resp = do(srv, "POST", path, "", nil)
	require.Equal(t, 200, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), "rivers-id")
	assert.Contains(t, resp.Body.String(), login.Data.Token)

	// Second redemption fails: the link is single-use.
	resp = do(srv, "POST", path, "", nil)
	assert.Equal(t, 400, resp.Code)

	resp = do(srv, "POST", "/magic-link/auth/unknown-token", "", nil)
	assert.Equal(t, 404, resp.Code)
}

func TestServer_SyncRequiresAuth(t *testing.T) {
	srv, engine := createRouter(t)
	engine.AddProject("rivers-id", "Rivers")

	resp := do(srv, "GET", "/sync/rivers-id", "", nil)
	assert.Equal(t, 401, resp.Code)

	// The server token passes authorization for any project id, so an
	// unknown project surfaces as not found instead.
	resp = do(srv, "GET", "/sync/unknown-id", serverToken, nil)
	assert.Equal(t, 404, resp.Code)
}
