package mock

import (
	"context"
	"fmt"
	"io"
	"sync"

	comapeo "github.com/digidem/comapeo-cloud"
)

// Engine is an in-memory comapeo.Engine for tests.
type Engine struct {
	mu sync.Mutex

	deviceID   string
	deviceInfo comapeo.DeviceInfo
	projects   map[string]*Project
	order      []string

	// CreatedCount counts CreateProject calls, so tests can assert that an
	// idempotent re-attach did not create anything.
	CreatedCount int

	// SetDeviceInfoCount counts SetDeviceInfo calls.
	SetDeviceInfoCount int
}

func NewEngine(deviceID string) *Engine {
	return &Engine{
		deviceID:   deviceID,
		deviceInfo: comapeo.DeviceInfo{DeviceType: comapeo.DeviceTypeUnspecified},
		projects:   make(map[string]*Project),
	}
}

// AddProject seeds a hosted project without going through CreateProject.
func (e *Engine) AddProject(id, name string) *Project {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.addProject(id, name)
}

func (e *Engine) addProject(id, name string) *Project {
	p := &Project{name: name}
	e.projects[id] = p
	e.order = append(e.order, id)
	return p
}

func (e *Engine) ListProjects(ctx context.Context) ([]comapeo.ProjectInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	infos := make([]comapeo.ProjectInfo, 0, len(e.order))
	for _, id := range e.order {
		infos = append(infos, comapeo.ProjectInfo{ID: id, Name: e.projects[id].name})
	}
	return infos, nil
}

func (e *Engine) Project(ctx context.Context, publicID string) (comapeo.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[publicID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", publicID, comapeo.ErrProjectNotFound)
	}
	return p, nil
}

func (e *Engine) CreateProject(ctx context.Context, cfg comapeo.ProjectConfig) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.CreatedCount++
	id := comapeo.ProjectPublicID(cfg.Key)
	e.addProject(id, cfg.Name)
	return id, nil
}

func (e *Engine) DeviceID() string {
	return e.deviceID
}

func (e *Engine) DeviceInfo(ctx context.Context) (comapeo.DeviceInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.deviceInfo, nil
}

func (e *Engine) SetDeviceInfo(ctx context.Context, info comapeo.DeviceInfo) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.SetDeviceInfoCount++
	e.deviceInfo = info
	return nil
}

// Project is a mock comapeo.Project.
type Project struct {
	mu sync.Mutex

	name string

	// Stream is what Replicate hands out, typically one end of a net.Pipe.
	Stream io.ReadWriteCloser

	// SyncStarted counts StartSync calls.
	SyncStarted int
}

func (p *Project) Name() string {
	return p.name
}

func (p *Project) StartSync(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.SyncStarted++
	return nil
}

func (p *Project) Replicate(ctx context.Context) (io.ReadWriteCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Stream == nil {
		return nil, fmt.Errorf("no replication stream for project %s", p.name)
	}
	return p.Stream, nil
}
