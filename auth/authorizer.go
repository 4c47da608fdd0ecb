package auth

import (
	"context"

	comapeo "github.com/digidem/comapeo-cloud"
	"github.com/digidem/comapeo-cloud/errors"
)

func errInvalidBearerToken() error {
	return errors.New("invalid bearer token", errors.Unauthorized())
}

// Authorizer decides whether a request may act on the server as a whole or on
// a single project. It is a capability check only: it never returns the
// resolved credential.
type Authorizer struct {
	serverToken string
	store       Store
	engine      comapeo.Engine
}

func NewAuthorizer(serverToken string, store Store, engine comapeo.Engine) *Authorizer {
	return &Authorizer{
		serverToken: serverToken,
		store:       store,
		engine:      engine,
	}
}

// RequireServerAuth fails with Unauthorized unless header carries the server
// credential.
func (a *Authorizer) RequireServerAuth(header string) error {
	if !ValidBearer(header, a.serverToken) {
		return errInvalidBearerToken()
	}
	return nil
}

// RequireProjectAuth accepts the server credential for any project, or a
// coordinator/member token whose project name matches the project resolved
// from publicID. Everything else fails with Unauthorized, including an
// unresolvable project: a caller without a valid credential must not be able
// to tell whether the project exists.
func (a *Authorizer) RequireProjectAuth(ctx context.Context, header, publicID string) error {
	if ValidBearer(header, a.serverToken) {
		return nil
	}

	token, err := BearerToken(header)
	if err != nil {
		return err
	}

	if publicID == "" {
		return errInvalidBearerToken()
	}

	project, err := a.engine.Project(ctx, publicID)
	if err != nil {
		return errInvalidBearerToken()
	}

	owner, err := a.store.OwnerByToken(token)
	if err != nil {
		return err
	}
	if owner == nil {
		return errInvalidBearerToken()
	}

	// Name binding: a valid token for project A must not be replayable
	// against project B.
	if owner.Project() != project.Name() {
		return errInvalidBearerToken()
	}

	return nil
}
