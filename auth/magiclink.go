package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	comapeo "github.com/digidem/comapeo-cloud"
	"github.com/digidem/comapeo-cloud/errors"
)

// A credential may create at most one magic link per trailing window.
const magicLinkWindow = time.Hour

// MagicLinkService issues and redeems single-use magic links. A link hands a
// session off to another device without re-transmitting the long-lived
// credential that created it.
type MagicLinkService struct {
	store  Store
	engine comapeo.Engine

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func NewMagicLinkService(store Store, engine comapeo.Engine) *MagicLinkService {
	return &MagicLinkService{
		store:  store,
		engine: engine,
		Now:    time.Now,
	}
}

// Issue creates a magic link owned by ownerToken. It fails with
// TooManyMagicLinks when the owner already created a link within the trailing
// window, measured against the creation time of its existing links.
func (s *MagicLinkService) Issue(ownerToken string) (string, error) {
	links, err := s.store.MagicLinksFor(ownerToken)
	if err != nil {
		return "", err
	}

	cutoff := s.Now().Add(-magicLinkWindow)
	for _, link := range links {
		if link.CreatedAt.After(cutoff) {
			return "", errors.New(
				"a magic link was already generated in the past hour",
				errors.TooManyMagicLinks(),
			)
		}
	}

	link, err := s.store.CreateMagicLink(ownerToken)
	if err != nil {
		return "", err
	}

	return link.Token, nil
}

// Redemption is what a successfully redeemed magic link reveals.
type Redemption struct {
	Owner     Owner
	ProjectID string
}

// Redeem consumes a magic link. The link is invalidated before the result is
// returned, so a concurrent second redemption of the same token observes it
// used and fails with BadRequest. An unknown token fails with NotFound.
func (s *MagicLinkService) Redeem(ctx context.Context, token string) (Redemption, error) {
	link, owner, err := s.store.MagicLink(token)
	if err != nil {
		return Redemption{}, err
	}
	if link == nil {
		return Redemption{}, errors.New("invalid magic link token", errors.NotFound())
	}
	if link.Used {
		return Redemption{}, errors.New("magic link token has already been used", errors.BadRequest())
	}
	if owner == nil {
		// The credential that created the link no longer resolves, e.g.
		// the coordinator rotated its token since.
		return Redemption{}, errors.New("invalid magic link token", errors.NotFound())
	}

	// The store only grants the used transition to one caller: a concurrent
	// redemption that read the link before we consumed it loses here.
	if err := s.store.InvalidateMagicLink(token); err != nil {
		if stderrors.Is(err, ErrMagicLinkUsed) {
			return Redemption{}, errors.New("magic link token has already been used", errors.BadRequest())
		}
		return Redemption{}, err
	}

	projects, err := s.engine.ListProjects(ctx)
	if err != nil {
		return Redemption{}, err
	}
	for _, p := range projects {
		if p.Name == owner.Project() {
			return Redemption{Owner: owner, ProjectID: p.ID}, nil
		}
	}

	return Redemption{}, errors.New(
		fmt.Sprintf("no project found for user with project name %s", owner.Project()),
		errors.NotFound(),
	)
}
