package project

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	comapeo "github.com/digidem/comapeo-cloud"
	"github.com/digidem/comapeo-cloud/errors"
	"github.com/digidem/comapeo-cloud/log"
	"github.com/digidem/comapeo-cloud/mock"
)

const baseURL = "https://comapeo.example.com"

func testKey(b byte) string {
	key := make([]byte, comapeo.ProjectKeySize)
	for i := range key {
		key[i] = b
	}
	return hex.EncodeToString(key)
}

func newService(engine *mock.Engine, policy Policy) *Service {
	return NewService(engine, policy, "Test Server", baseURL, log.NewNop())
}

func TestService_Attach(t *testing.T) {
	ctx := context.Background()
	engine := mock.NewEngine("device-1")
	service := newService(engine, CapPolicy(1))

	result, err := service.Attach(ctx, testKey(1), "Rivers", nil)
	require.NoError(t, err)
	assert.Equal(t, "device-1", result.DeviceID)
	assert.Equal(t, comapeo.ProjectPublicID(mustDecode(t, testKey(1))), result.ProjectID)
	assert.Equal(t, 1, engine.CreatedCount)

	projects, err := engine.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Rivers", projects[0].Name)

	p, err := engine.Project(ctx, result.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.(*mock.Project).SyncStarted)
}

func TestService_Attach_idempotent(t *testing.T) {
	ctx := context.Background()
	engine := mock.NewEngine("device-1")
	service := newService(engine, CapPolicy(1))

	first, err := service.Attach(ctx, testKey(1), "Rivers", nil)
	require.NoError(t, err)

	second, err := service.Attach(ctx, testKey(1), "Rivers", nil)
	require.NoError(t, err)

	assert.Equal(t, first.ProjectID, second.ProjectID)
	assert.Equal(t, 1, engine.CreatedCount, "second attach must not create anything")

	projects, err := engine.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestService_Attach_generatedKey(t *testing.T) {
	ctx := context.Background()
	engine := mock.NewEngine("device-1")
	service := newService(engine, CapPolicy(2))

	first, err := service.Attach(ctx, "", "Rivers", nil)
	require.NoError(t, err)
	second, err := service.Attach(ctx, "", "Lakes", nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.ProjectID, second.ProjectID, "generated keys must be fresh")
	assert.Len(t, first.ProjectID, 64)
}

func TestService_Attach_invalidKey(t *testing.T) {
	ctx := context.Background()
	service := newService(mock.NewEngine("device-1"), CapPolicy(1))

	for name, keyHex := range map[string]string{
		"not hex":   "zzzz",
		"too short": "abcd",
		"too long":  testKey(1) + "00",
	} {
		_, err := service.Attach(ctx, keyHex, "Rivers", nil)
		require.Error(t, err, name)
		errors.AssertCode(t, err, 400)
	}
}

func TestService_Attach_cap(t *testing.T) {
	ctx := context.Background()
	engine := mock.NewEngine("device-1")
	service := newService(engine, CapPolicy(1))

	_, err := service.Attach(ctx, testKey(1), "Rivers", nil)
	require.NoError(t, err)

	_, err = service.Attach(ctx, testKey(2), "Lakes", nil)
	require.Error(t, err)
	errors.AssertCode(t, err, 403)
	errors.AssertKind(t, err, errors.KindTooManyProjects)

	// Re-attaching the first project stays fine at the cap.
	_, err = service.Attach(ctx, testKey(1), "Rivers", nil)
	require.NoError(t, err)
}

func TestService_Attach_allowlist(t *testing.T) {
	ctx := context.Background()
	engine := mock.NewEngine("device-1")

	allowedID := comapeo.ProjectPublicID(mustDecode(t, testKey(1)))
	service := newService(engine, AllowlistPolicy([]string{allowedID}))

	_, err := service.Attach(ctx, testKey(2), "Lakes", nil)
	require.Error(t, err)
	errors.AssertCode(t, err, 403)
	errors.AssertKind(t, err, errors.KindProjectNotInAllowlist)

	result, err := service.Attach(ctx, testKey(1), "Rivers", nil)
	require.NoError(t, err)
	assert.Equal(t, allowedID, result.ProjectID)
}

func TestService_Attach_deviceInfo(t *testing.T) {
	ctx := context.Background()
	engine := mock.NewEngine("device-1")
	service := newService(engine, CapPolicy(2))

	_, err := service.Attach(ctx, testKey(1), "Rivers", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.SetDeviceInfoCount)

	info, err := engine.DeviceInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, comapeo.DeviceTypeSelfHostedServer, info.DeviceType)
	assert.Equal(t, "Test Server", info.Name)
	require.NotNil(t, info.SelfHostedServerDetails)
	assert.Equal(t, baseURL, info.SelfHostedServerDetails.BaseURL)

	// Unchanged address: the announcement is not repeated.
	_, err = service.Attach(ctx, testKey(2), "Lakes", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.SetDeviceInfoCount)
}

func TestService_Attach_suppliedEncryptionKeys(t *testing.T) {
	ctx := context.Background()
	engine := mock.NewEngine("device-1")
	service := newService(engine, CapPolicy(1))

	keys := comapeo.NewEncryptionKeys()
	_, err := service.Attach(ctx, testKey(1), "Rivers", &keys)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.CreatedCount)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	engine := mock.NewEngine("device-1")
	engine.AddProject("rivers-id", "Rivers")
	engine.AddProject("lakes-id", "Lakes")
	service := newService(engine, CapPolicy(2))

	all, err := service.List(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byID, err := service.List(ctx, "rivers-id", "")
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "Rivers", byID[0].Name)

	byName, err := service.List(ctx, "", "Lakes")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "lakes-id", byName[0].ID)

	none, err := service.List(ctx, "nope", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPolicy_Admit(t *testing.T) {
	require.NoError(t, CapPolicy(2).Admit("any", 1))
	require.Error(t, CapPolicy(2).Admit("any", 2))
	require.Error(t, DefaultPolicy().Admit("any", 1))
	require.NoError(t, DefaultPolicy().Admit("any", 0))

	allow := AllowlistPolicy([]string{"a", "b"})
	require.NoError(t, allow.Admit("a", 100), "allowlist ignores the count")
	require.Error(t, allow.Admit("c", 0))
}

func mustDecode(t *testing.T, keyHex string) []byte {
	t.Helper()
	key, err := hex.DecodeString(keyHex)
	require.NoError(t, err)
	return key
}
