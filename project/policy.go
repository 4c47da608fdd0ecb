package project

import (
	"github.com/digidem/comapeo-cloud/errors"
)

// Policy gates which projects a deployment may host: either a cap on how many,
// or an explicit allowlist of project public ids.
type Policy struct {
	max     int
	allowed map[string]struct{}
}

// DefaultPolicy caps the deployment at a single project.
func DefaultPolicy() Policy {
	return CapPolicy(1)
}

// CapPolicy admits any project as long as fewer than max are attached.
func CapPolicy(max int) Policy {
	return Policy{max: max}
}

// AllowlistPolicy admits only the listed project public ids, regardless of
// count.
func AllowlistPolicy(ids []string) Policy {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return Policy{allowed: allowed}
}

// Admit decides whether a project that is not yet attached may be. attached
// is the number of projects currently hosted.
func (p Policy) Admit(publicID string, attached int) error {
	if p.allowed != nil {
		if _, ok := p.allowed[publicID]; !ok {
			return errors.New("project not allowed", errors.ProjectNotInAllowlist())
		}
		return nil
	}

	if attached >= p.max {
		return errors.New(
			"server is already linked to the maximum number of projects",
			errors.TooManyProjects(),
		)
	}
	return nil
}
