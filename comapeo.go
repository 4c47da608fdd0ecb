package comapeo

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
)

// ProjectKeySize is the size, in bytes, of a project private key.
const ProjectKeySize = 32

// ErrProjectNotFound is returned by Engine implementations when no project
// matches the given public id.
var ErrProjectNotFound = errors.New("project not found")

// Device types reported by the engine.
const (
	DeviceTypeUnspecified      = "device_type_unspecified"
	DeviceTypeSelfHostedServer = "selfHostedServer"
)

// ProjectInfo is the summary the engine exposes for each project it hosts.
type ProjectInfo struct {
	ID   string `json:"projectId"`
	Name string `json:"name"`
}

// EncryptionKeys holds the per-purpose encryption material of a project,
// hex-encoded. The gateway never interprets them, it only forwards them to
// the engine on project creation.
type EncryptionKeys struct {
	Auth      string `json:"auth"`
	Config    string `json:"config"`
	Data      string `json:"data"`
	BlobIndex string `json:"blobIndex"`
	Blob      string `json:"blob"`
}

// ProjectConfig is what the engine needs to create a project.
type ProjectConfig struct {
	Key            []byte
	Name           string
	EncryptionKeys EncryptionKeys
}

type SelfHostedServerDetails struct {
	BaseURL string `json:"baseUrl"`
}

// DeviceInfo describes this deployment as a device in the sync swarm.
type DeviceInfo struct {
	DeviceType              string                   `json:"deviceType"`
	Name                    string                   `json:"name"`
	SelfHostedServerDetails *SelfHostedServerDetails `json:"selfHostedServerDetails,omitempty"`
}

// Project is a single project hosted by the engine.
type Project interface {
	// Name returns the project name from its settings.
	Name() string

	// StartSync asks the engine to start synchronizing the project with
	// its connected peers.
	StartSync(ctx context.Context) error

	// Replicate returns the raw replication byte stream for the project.
	// The gateway pipes it as-is, it never frames or inspects the bytes.
	Replicate(ctx context.Context) (io.ReadWriteCloser, error)
}

// Engine is the boundary with the data-sync engine. The gateway consumes it,
// it never implements project storage or replication itself.
type Engine interface {
	ListProjects(ctx context.Context) ([]ProjectInfo, error)

	// Project resolves a project by public id. It returns an error wrapping
	// ErrProjectNotFound when the id matches no hosted project.
	Project(ctx context.Context, publicID string) (Project, error)

	// CreateProject creates a project and returns its public id without
	// waiting for an initial sync.
	CreateProject(ctx context.Context, cfg ProjectConfig) (string, error)

	DeviceID() string
	DeviceInfo(ctx context.Context) (DeviceInfo, error)
	SetDeviceInfo(ctx context.Context, info DeviceInfo) error
}

// ProjectPublicID derives the public id of a project from its private key.
// The derivation is one-way: the key cannot be recovered from the id.
func ProjectPublicID(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}

// NewProjectKey generates a fresh random project private key.
func NewProjectKey() []byte {
	key := make([]byte, ProjectKeySize)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	return key
}

// NewEncryptionKeys generates fresh random encryption material for every
// purpose of a new project.
func NewEncryptionKeys() EncryptionKeys {
	random := func() string {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}
		return hex.EncodeToString(buf)
	}

	return EncryptionKeys{
		Auth:      random(),
		Config:    random(),
		Data:      random(),
		BlobIndex: random(),
		Blob:      random(),
	}
}
