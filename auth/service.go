package auth

import (
	"context"
	"fmt"
	"regexp"
	"time"

	comapeo "github.com/digidem/comapeo-cloud"
	"github.com/digidem/comapeo-cloud/errors"
	"github.com/digidem/comapeo-cloud/log"
)

// E.164, with an optional leading +.
var phoneNumberRegexp = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// Service handles coordinator registration, coordinator login and member
// enrollment.
type Service struct {
	store  Store
	engine comapeo.Engine
	logger log.Logger

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func NewService(store Store, engine comapeo.Engine, logger log.Logger) *Service {
	return &Service{
		store:  store,
		engine: engine,
		logger: logger,
		Now:    time.Now,
	}
}

// Register creates a coordinator for a project name. It fails with Conflict
// when the phone number or the project name is already taken, either by
// another coordinator or by a project hosted on the engine.
func (s *Service) Register(ctx context.Context, phone, projectName string) (Coordinator, error) {
	s.logger.Printf("attempting coordinator registration for phone %s", phone)

	existing, err := s.store.CoordinatorByPhone(phone)
	if err != nil {
		return Coordinator{}, err
	}
	if existing != nil {
		return Coordinator{}, errors.New("phone number already registered", errors.Conflict())
	}

	owner, err := s.store.CoordinatorByProject(projectName)
	if err != nil {
		return Coordinator{}, err
	}
	if owner != nil {
		return Coordinator{}, errors.New("project name already exists", errors.Conflict())
	}

	projects, err := s.engine.ListProjects(ctx)
	if err != nil {
		return Coordinator{}, err
	}
	for _, p := range projects {
		if p.Name == projectName {
			return Coordinator{}, errors.New("project name already exists", errors.Conflict())
		}
	}

	coordinator := Coordinator{
		PhoneNumber: phone,
		ProjectName: projectName,
		CreatedAt:   s.Now(),
	}
	if err := s.store.UpsertCoordinator(coordinator); err != nil {
		return Coordinator{}, err
	}

	s.logger.Printf("registered new coordinator for project %s", projectName)
	return coordinator, nil
}

// Login verifies a coordinator's phone number and project name, checks the
// project exists on the engine, and rotates the coordinator's token. The
// previous token stops working.
func (s *Service) Login(ctx context.Context, phone, projectName string) (string, error) {
	coordinator, err := s.store.CoordinatorByPhone(phone)
	if err != nil {
		return "", err
	}
	if coordinator == nil || coordinator.ProjectName != projectName {
		// Same message for both: do not reveal which half was wrong.
		return "", errors.New("invalid phone number or project name", errors.Unauthorized())
	}

	projects, err := s.engine.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	found := false
	for _, p := range projects {
		if p.Name == coordinator.ProjectName {
			found = true
			break
		}
	}
	if !found {
		s.logger.Errorf("project not found for coordinator login: %s", coordinator.ProjectName)
		return "", errors.New(
			fmt.Sprintf("no project named %s", coordinator.ProjectName),
			errors.ProjectNotFound(),
		)
	}

	coordinator.Token = GenerateToken()
	coordinator.CreatedAt = s.Now()
	if err := s.store.UpsertCoordinator(*coordinator); err != nil {
		return "", err
	}

	s.logger.Printf("saved coordinator %s with new token", phone)
	return coordinator.Token, nil
}

// EnrollMember registers a member under a coordinator. The Authorization
// header must carry the coordinator's own token; the member inherits the
// coordinator's project and gets a fresh token of its own.
func (s *Service) EnrollMember(authHeader, coordPhone, memberPhone string) (string, error) {
	coordinator, err := s.store.CoordinatorByPhone(coordPhone)
	if err != nil {
		return "", err
	}
	if coordinator == nil || coordinator.Token == "" {
		return "", errors.New("invalid coordinator phone number", errors.Unauthorized())
	}

	if !ValidBearer(authHeader, coordinator.Token) {
		return "", errInvalidBearerToken()
	}

	if !phoneNumberRegexp.MatchString(memberPhone) {
		return "", errors.New("invalid phone number format", errors.BadRequest())
	}

	existing, err := s.store.MemberByPhone(memberPhone)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", errors.New("phone number already registered", errors.BadRequest())
	}

	member := Member{
		PhoneNumber:      memberPhone,
		Token:            GenerateToken(),
		CoordinatorPhone: coordinator.PhoneNumber,
		ProjectName:      coordinator.ProjectName,
		CreatedAt:        s.Now(),
	}
	if err := s.store.AppendMember(member); err != nil {
		return "", err
	}

	s.logger.Printf("registered member %s for project %s", memberPhone, member.ProjectName)
	return member.Token, nil
}

// RemoveCoordinator deletes a coordinator record. Members the coordinator
// enrolled are left untouched and keep working.
func (s *Service) RemoveCoordinator(phone string) error {
	coordinator, err := s.store.CoordinatorByPhone(phone)
	if err != nil {
		return err
	}
	if coordinator == nil {
		return errors.New(fmt.Sprintf("no coordinator for phone %s", phone), errors.NotFound())
	}

	return s.store.DeleteCoordinator(phone)
}
