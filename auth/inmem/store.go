package inmem

import (
	"fmt"
	"sync"

	"github.com/digidem/comapeo-cloud/auth"
)

// Store is an in-memory auth.Store. It backs tests and throwaway dev servers;
// nothing survives a restart.
type Store struct {
	mu           sync.Mutex
	coordinators []auth.Coordinator
	members      []auth.Member
	magicLinks   []auth.MagicLink
}

func New() *Store {
	return &Store{}
}

func (s *Store) ListCoordinators() ([]auth.Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]auth.Coordinator, len(s.coordinators))
	copy(out, s.coordinators)
	return out, nil
}

func (s *Store) UpsertCoordinator(c auth.Coordinator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.coordinators {
		if s.coordinators[i].PhoneNumber == c.PhoneNumber {
			s.coordinators[i] = c
			return nil
		}
	}
	s.coordinators = append(s.coordinators, c)
	return nil
}

func (s *Store) DeleteCoordinator(phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.coordinators {
		if s.coordinators[i].PhoneNumber == phone {
			s.coordinators = append(s.coordinators[:i], s.coordinators[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) CoordinatorByPhone(phone string) (*auth.Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.coordinators {
		if c.PhoneNumber == phone {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) CoordinatorByProject(name string) (*auth.Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.coordinators {
		if c.ProjectName == name {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) ListMembers() ([]auth.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]auth.Member, len(s.members))
	copy(out, s.members)
	return out, nil
}

func (s *Store) AppendMember(m auth.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.members {
		if s.members[i].PhoneNumber == m.PhoneNumber {
			return fmt.Errorf("member %s already exists", m.PhoneNumber)
		}
	}
	s.members = append(s.members, m)
	return nil
}

func (s *Store) MemberByPhone(phone string) (*auth.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.members {
		if m.PhoneNumber == phone {
			m := m
			return &m, nil
		}
	}
	return nil, nil
}

func (s *Store) OwnerByToken(token string) (auth.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ownerByToken(token), nil
}

// Coordinators take precedence over members when the same token shows up in
// both collections.
func (s *Store) ownerByToken(token string) auth.Owner {
	token = auth.TrimBearer(token)
	if token == "" {
		return nil
	}

	for _, c := range s.coordinators {
		if c.Token == token {
			return c
		}
	}
	for _, m := range s.members {
		if m.Token == token {
			return m
		}
	}
	return nil
}

func (s *Store) CreateMagicLink(userToken string) (auth.MagicLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link := auth.NewMagicLink(userToken)
	s.magicLinks = append(s.magicLinks, link)
	return link, nil
}

func (s *Store) MagicLink(token string) (*auth.MagicLink, auth.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, link := range s.magicLinks {
		if link.Token == token {
			link := link
			return &link, s.ownerByToken(link.UserToken), nil
		}
	}
	return nil, nil, nil
}

func (s *Store) MagicLinksFor(userToken string) ([]auth.MagicLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []auth.MagicLink
	for _, link := range s.magicLinks {
		if link.UserToken == userToken {
			out = append(out, link)
		}
	}
	return out, nil
}

func (s *Store) InvalidateMagicLink(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.magicLinks {
		if s.magicLinks[i].Token == token {
			if s.magicLinks[i].Used {
				return auth.ErrMagicLinkUsed
			}
			s.magicLinks[i].Used = true
			return nil
		}
	}
	return fmt.Errorf("no magic link for token %s", token)
}
