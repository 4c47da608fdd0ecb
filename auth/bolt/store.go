package bolt

import (
	"encoding/json"
	"fmt"

	"github.com/boltdb/bolt"

	"github.com/digidem/comapeo-cloud/auth"
)

var (
	coordinatorBucket = []byte("coordinators")
	memberBucket      = []byte("members")
	magicLinkBucket   = []byte("magiclinks")
)

// Store is the bolt-backed credential store. Every operation runs inside a
// single bolt transaction, which serializes concurrent read-modify-write
// cycles: no update can be lost to an interleaved writer.
type Store struct {
	Driver *Driver
}

func (s *Store) ListCoordinators() ([]auth.Coordinator, error) {
	var coordinators []auth.Coordinator

	err := s.Driver.store.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(coordinatorBucket).Cursor()
		for k, data := c.First(); k != nil; k, data = c.Next() {
			var coordinator auth.Coordinator
			if err := json.Unmarshal(data, &coordinator); err != nil {
				return fmt.Errorf("corrupted coordinator record %s: %v", k, err)
			}
			coordinators = append(coordinators, coordinator)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return coordinators, nil
}

func (s *Store) UpsertCoordinator(coordinator auth.Coordinator) error {
	return s.Driver.store.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(coordinator)
		if err != nil {
			return err
		}

		return tx.Bucket(coordinatorBucket).Put([]byte(coordinator.PhoneNumber), data)
	})
}

func (s *Store) DeleteCoordinator(phone string) error {
	return s.Driver.store.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(coordinatorBucket).Delete([]byte(phone))
	})
}

func (s *Store) CoordinatorByPhone(phone string) (*auth.Coordinator, error) {
	var coordinator *auth.Coordinator

	err := s.Driver.store.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(coordinatorBucket).Get([]byte(phone))
		if data == nil {
			return nil
		}

		coordinator = &auth.Coordinator{}
		return json.Unmarshal(data, coordinator)
	})
	if err != nil {
		return nil, err
	}

	return coordinator, nil
}

func (s *Store) CoordinatorByProject(name string) (*auth.Coordinator, error) {
	var coordinator *auth.Coordinator

	err := s.Driver.store.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(coordinatorBucket).Cursor()
		for k, data := c.First(); k != nil; k, data = c.Next() {
			var candidate auth.Coordinator
			if err := json.Unmarshal(data, &candidate); err != nil {
				return fmt.Errorf("corrupted coordinator record %s: %v", k, err)
			}
			if candidate.ProjectName == name {
				coordinator = &candidate
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return coordinator, nil
}

func (s *Store) ListMembers() ([]auth.Member, error) {
	var members []auth.Member

	err := s.Driver.store.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(memberBucket).Cursor()
		for k, data := c.First(); k != nil; k, data = c.Next() {
			var member auth.Member
			if err := json.Unmarshal(data, &member); err != nil {
				return fmt.Errorf("corrupted member record %s: %v", k, err)
			}
			members = append(members, member)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return members, nil
}

func (s *Store) AppendMember(member auth.Member) error {
	return s.Driver.store.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(memberBucket)
		if bucket.Get([]byte(member.PhoneNumber)) != nil {
			return fmt.Errorf("member %s already exists", member.PhoneNumber)
		}

		data, err := json.Marshal(member)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(member.PhoneNumber), data)
	})
}

func (s *Store) MemberByPhone(phone string) (*auth.Member, error) {
	var member *auth.Member

	err := s.Driver.store.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(memberBucket).Get([]byte(phone))
		if data == nil {
			return nil
		}

		member = &auth.Member{}
		return json.Unmarshal(data, member)
	})
	if err != nil {
		return nil, err
	}

	return member, nil
}

func (s *Store) OwnerByToken(token string) (auth.Owner, error) {
	var owner auth.Owner

	err := s.Driver.store.View(func(tx *bolt.Tx) error {
		owner = ownerByToken(tx, token)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return owner, nil
}

// ownerByToken checks coordinators before members: a token duplicated across
// both collections deterministically resolves to the coordinator.
func ownerByToken(tx *bolt.Tx, token string) auth.Owner {
	token = auth.TrimBearer(token)
	if token == "" {
		return nil
	}

	c := tx.Bucket(coordinatorBucket).Cursor()
	for k, data := c.First(); k != nil; k, data = c.Next() {
		var coordinator auth.Coordinator
		if err := json.Unmarshal(data, &coordinator); err != nil {
			continue
		}
		if coordinator.Token == token {
			return coordinator
		}
	}

	m := tx.Bucket(memberBucket).Cursor()
	for k, data := m.First(); k != nil; k, data = m.Next() {
		var member auth.Member
		if err := json.Unmarshal(data, &member); err != nil {
			continue
		}
		if member.Token == token {
			return member
		}
	}

	return nil
}

func (s *Store) CreateMagicLink(userToken string) (auth.MagicLink, error) {
	link := auth.NewMagicLink(userToken)

	err := s.Driver.store.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(link)
		if err != nil {
			return err
		}

		return tx.Bucket(magicLinkBucket).Put([]byte(link.Token), data)
	})
	if err != nil {
		return auth.MagicLink{}, err
	}

	return link, nil
}

func (s *Store) MagicLink(token string) (*auth.MagicLink, auth.Owner, error) {
	var (
		link  *auth.MagicLink
		owner auth.Owner
	)

	err := s.Driver.store.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(magicLinkBucket).Get([]byte(token))
		if data == nil {
			return nil
		}

		link = &auth.MagicLink{}
		if err := json.Unmarshal(data, link); err != nil {
			return fmt.Errorf("corrupted magic link record %s: %v", token, err)
		}

		owner = ownerByToken(tx, link.UserToken)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return link, owner, nil
}

func (s *Store) MagicLinksFor(userToken string) ([]auth.MagicLink, error) {
	var links []auth.MagicLink

	err := s.Driver.store.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(magicLinkBucket).Cursor()
		for k, data := c.First(); k != nil; k, data = c.Next() {
			var link auth.MagicLink
			if err := json.Unmarshal(data, &link); err != nil {
				return fmt.Errorf("corrupted magic link record %s: %v", k, err)
			}
			if link.UserToken == userToken {
				links = append(links, link)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return links, nil
}

func (s *Store) InvalidateMagicLink(token string) error {
	return s.Driver.store.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(magicLinkBucket)

		data := bucket.Get([]byte(token))
		if data == nil {
			return fmt.Errorf("no magic link for token %s", token)
		}

		var link auth.MagicLink
		if err := json.Unmarshal(data, &link); err != nil {
			return fmt.Errorf("corrupted magic link record %s: %v", token, err)
		}
		if link.Used {
			return auth.ErrMagicLinkUsed
		}

		link.Used = true
		updated, err := json.Marshal(link)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(token), updated)
	})
}
