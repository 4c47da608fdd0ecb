package auth

import (
	"errors"
	"time"
)

// ErrMagicLinkUsed is returned by Store.InvalidateMagicLink when the link was
// already consumed. The used transition happens at most once, inside the
// store's critical section.
var ErrMagicLinkUsed = errors.New("magic link already used")

// Coordinator is the participant that owns a project and can enroll members
// into it. There is at most one coordinator per phone number and per project
// name. Its token is only populated after a login.
type Coordinator struct {
	PhoneNumber string    `json:"phoneNumber"`
	ProjectName string    `json:"projectName"`
	Token       string    `json:"token,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Member is a participant enrolled by a coordinator. Members are created once
// and never updated. The coordinator back-reference is informational: deleting
// the coordinator afterwards does not invalidate the member.
type Member struct {
	PhoneNumber      string    `json:"phoneNumber"`
	Token            string    `json:"token"`
	CoordinatorPhone string    `json:"coordinatorPhone"`
	ProjectName      string    `json:"projectName"`
	CreatedAt        time.Time `json:"createdAt"`
}

// MagicLink is a single-use token bound to the credential that created it.
// It transitions from unused to used exactly once and is never deleted.
type MagicLink struct {
	Token     string    `json:"token"`
	UserToken string    `json:"userToken"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMagicLink builds an unused magic link owned by userToken, with a fresh
// random token. Stores call it so every implementation creates links the same
// way.
func NewMagicLink(userToken string) MagicLink {
	return MagicLink{
		Token:     GenerateToken(),
		UserToken: userToken,
		CreatedAt: time.Now(),
	}
}

// Owner is whoever a project-scoped token resolves to, coordinator or member.
type Owner interface {
	Phone() string
	Project() string
}

func (c Coordinator) Phone() string   { return c.PhoneNumber }
func (c Coordinator) Project() string { return c.ProjectName }

func (m Member) Phone() string   { return m.PhoneNumber }
func (m Member) Project() string { return m.ProjectName }

// Store is the credential store. Implementations must perform each operation
// as a single atomic unit: two concurrent operations never interleave their
// reads and writes.
//
// Lookup methods return a nil record and a nil error when nothing matches.
// I/O failures propagate as errors, they are never swallowed.
type Store interface {
	ListCoordinators() ([]Coordinator, error)
	UpsertCoordinator(c Coordinator) error
	DeleteCoordinator(phone string) error
	CoordinatorByPhone(phone string) (*Coordinator, error)
	CoordinatorByProject(name string) (*Coordinator, error)

	ListMembers() ([]Member, error)
	AppendMember(m Member) error
	MemberByPhone(phone string) (*Member, error)

	// OwnerByToken resolves the coordinator or member holding the given
	// token. It accepts a raw Authorization header value and strips the
	// "Bearer " scheme before comparing. Coordinators are checked before
	// members so that a token duplicated across both collections resolves
	// deterministically.
	OwnerByToken(token string) (Owner, error)

	// CreateMagicLink stores a fresh unused magic link owned by userToken
	// and returns it.
	CreateMagicLink(userToken string) (MagicLink, error)

	// MagicLink returns the link with the given token and the owner whose
	// credential created it, when that credential still resolves.
	MagicLink(token string) (*MagicLink, Owner, error)

	MagicLinksFor(userToken string) ([]MagicLink, error)

	// InvalidateMagicLink marks the link as used. The transition is
	// irreversible and conditional: a link that is already used fails with
	// ErrMagicLinkUsed, so only one caller ever wins it.
	InvalidateMagicLink(token string) error
}
