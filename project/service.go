package project

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	comapeo "github.com/digidem/comapeo-cloud"
	"github.com/digidem/comapeo-cloud/errors"
	"github.com/digidem/comapeo-cloud/log"
)

// Service attaches projects to the deployment and lists the ones it hosts.
type Service struct {
	engine     comapeo.Engine
	policy     Policy
	serverName string
	baseURL    string
	logger     log.Logger
}

func NewService(engine comapeo.Engine, policy Policy, serverName, baseURL string, logger log.Logger) *Service {
	return &Service{
		engine:     engine,
		policy:     policy,
		serverName: serverName,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// AttachResult is what an attach returns: this deployment's device id and the
// project's public id.
type AttachResult struct {
	DeviceID  string `json:"deviceId"`
	ProjectID string `json:"projectId"`
}

// Attach attaches a project to this deployment. keyHex is the hex-encoded
// project private key; when empty a fresh random key is generated. keys is
// the caller-supplied encryption material; when nil fresh material is
// generated. Attach is idempotent: attaching the same key twice returns the
// same project id both times and does not duplicate the project.
func (s *Service) Attach(ctx context.Context, keyHex, name string, keys *comapeo.EncryptionKeys) (AttachResult, error) {
	var key []byte
	if keyHex == "" {
		key = comapeo.NewProjectKey()
	} else {
		var err error
		key, err = hex.DecodeString(keyHex)
		if err != nil || len(key) != comapeo.ProjectKeySize {
			return AttachResult{}, errors.New("invalid project key", errors.BadRequest())
		}
	}
	publicID := comapeo.ProjectPublicID(key)

	existing, err := s.engine.ListProjects(ctx)
	if err != nil {
		return AttachResult{}, err
	}

	// Compare against every hosted project in constant time, without an
	// early exit, so response timing does not let a caller enumerate
	// which ids this deployment hosts.
	alreadyAttached := false
	for _, p := range existing {
		if subtle.ConstantTimeCompare([]byte(p.ID), []byte(publicID)) == 1 {
			alreadyAttached = true
		}
	}

	if !alreadyAttached {
		if err := s.policy.Admit(publicID, len(existing)); err != nil {
			return AttachResult{}, err
		}
	}

	if err := s.announceDeviceInfo(ctx); err != nil {
		return AttachResult{}, err
	}

	if !alreadyAttached {
		cfg := comapeo.ProjectConfig{
			Key:  key,
			Name: name,
		}
		if keys != nil {
			cfg.EncryptionKeys = *keys
		} else {
			cfg.EncryptionKeys = comapeo.NewEncryptionKeys()
		}

		id, err := s.engine.CreateProject(ctx, cfg)
		if err != nil {
			return AttachResult{}, err
		}
		if id != publicID {
			// The engine derives ids from keys the same way we do; a
			// mismatch means one of the two is broken.
			panic(fmt.Sprintf("engine returned project id %s for derived id %s", id, publicID))
		}
		s.logger.Printf("attached project %s", publicID)
	}

	p, err := s.engine.Project(ctx, publicID)
	if err != nil {
		return AttachResult{}, remapNotFound(err)
	}
	if err := p.StartSync(ctx); err != nil {
		return AttachResult{}, err
	}

	return AttachResult{
		DeviceID:  s.engine.DeviceID(),
		ProjectID: publicID,
	}, nil
}

// announceDeviceInfo publishes this deployment's own address as server device
// metadata, when unset or stale. Re-announcing the same address is skipped.
func (s *Service) announceDeviceInfo(ctx context.Context) error {
	info, err := s.engine.DeviceInfo(ctx)
	if err != nil {
		return err
	}

	current := ""
	if info.SelfHostedServerDetails != nil {
		current = info.SelfHostedServerDetails.BaseURL
	}
	if info.DeviceType != comapeo.DeviceTypeUnspecified && current == s.baseURL {
		return nil
	}

	return s.engine.SetDeviceInfo(ctx, comapeo.DeviceInfo{
		DeviceType:              comapeo.DeviceTypeSelfHostedServer,
		Name:                    s.serverName,
		SelfHostedServerDetails: &comapeo.SelfHostedServerDetails{BaseURL: s.baseURL},
	})
}

// List returns the hosted projects, optionally filtered by public id or name.
func (s *Service) List(ctx context.Context, filterID, filterName string) ([]comapeo.ProjectInfo, error) {
	projects, err := s.engine.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case filterID != "":
		filtered := projects[:0]
		for _, p := range projects {
			if p.ID == filterID {
				filtered = append(filtered, p)
			}
		}
		projects = filtered
	case filterName != "":
		filtered := projects[:0]
		for _, p := range projects {
			if p.Name == filterName {
				filtered = append(filtered, p)
			}
		}
		projects = filtered
	}

	return projects, nil
}
