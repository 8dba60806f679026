package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"ecselfservice/internal/domain"
	"ecselfservice/internal/ports"
)

const secureTokenBytes = 32

type CatalogService struct {
	backend ports.EventCollector
	cache   *Cache
	logger  ports.Logger
}

func NewCatalogService(backend ports.EventCollector, cache *Cache, logger ports.Logger) *CatalogService {
	return &CatalogService{backend: backend, cache: cache, logger: logger}
}

type CreatedApplication struct {
	Application domain.Application `json:"application"`
	SecureToken string             `json:"secure_token"`
}

func (s *CatalogService) ListApplications(ctx context.Context) ([]domain.Application, error) {
	return s.cache.ReadAll(ctx)
}

func (s *CatalogService) GetApplication(ctx context.Context, name string) (domain.Application, error) {
	if name == "" {
		return domain.Application{}, domain.ErrInvalidInput
	}
	app, ok, err := s.cache.ReadByName(ctx, name)
	if err != nil {
		return domain.Application{}, err
	}
	if !ok {
		return domain.Application{}, fmt.Errorf("application %q: %w", name, domain.ErrNotFound)
	}
	return app, nil
}

// ListEvents returns the events of appName, or of every application when
// appName is empty, in listing order.
func (s *CatalogService) ListEvents(ctx context.Context, appName string) ([]domain.Event, error) {
	if appName != "" {
		app, err := s.GetApplication(ctx, appName)
		if err != nil {
			return nil, err
		}
		return app.Events, nil
	}
	apps, err := s.cache.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	events := []domain.Event{}
	for _, app := range apps {
		events = append(events, app.Events...)
	}
	return events, nil
}

// CreateApplication registers name with the backend and then admits the
// confirmed application into the cache.
func (s *CatalogService) CreateApplication(ctx context.Context, name, createdBy string) (CreatedApplication, error) {
	if err := domain.ValidateName(name); err != nil {
		return CreatedApplication{}, err
	}
	if createdBy == "" {
		return CreatedApplication{}, domain.ErrInvalidInput
	}
	if _, taken, err := s.cache.ReadByName(ctx, name); err != nil {
		return CreatedApplication{}, err
	} else if taken {
		err := &domain.AppAlreadyExistsError{AppName: name}
		s.logFailure(ctx, "new_application", err, "app_name", name, "created_by", createdBy)
		return CreatedApplication{}, err
	}

	token, err := generateSecureToken()
	if err != nil {
		return CreatedApplication{}, err
	}
	app, err := s.backend.CreateApplication(ctx, name, createdBy)
	if err != nil {
		s.logFailure(ctx, "new_application", err, "app_name", name, "created_by", createdBy)
		return CreatedApplication{}, err
	}
	if err := s.cache.Insert(ctx, app); err != nil {
		s.logFailure(ctx, "new_application", err, "app_name", name, "created_by", createdBy)
		return CreatedApplication{}, err
	}
	s.logger.Info(ctx, "application created", "type", "new_application", "app_name", name, "created_by", createdBy)
	return CreatedApplication{Application: app, SecureToken: token}, nil
}

func (s *CatalogService) CreateEvent(ctx context.Context, appName, eventName, createdBy string) (domain.Event, error) {
	if err := domain.ValidateName(eventName); err != nil {
		return domain.Event{}, err
	}
	if createdBy == "" {
		return domain.Event{}, domain.ErrInvalidInput
	}
	app, err := s.GetApplication(ctx, appName)
	if err != nil {
		return domain.Event{}, err
	}
	if _, exists := app.EventByName(eventName); exists {
		err := &domain.EventAlreadyExistsError{AppName: appName, EventName: eventName}
		s.logFailure(ctx, "new_event", err, "app_name", appName, "event_name", eventName, "created_by", createdBy)
		return domain.Event{}, err
	}

	event, err := s.backend.CreateEvent(ctx, app, eventName, createdBy)
	if err != nil {
		s.logFailure(ctx, "new_event", err, "app_name", appName, "event_name", eventName, "created_by", createdBy)
		return domain.Event{}, err
	}
	if err := s.cache.Insert(ctx, event); err != nil {
		s.logFailure(ctx, "new_event", err, "app_name", appName, "event_name", eventName, "created_by", createdBy)
		return domain.Event{}, err
	}
	s.logger.Info(ctx, "event created", "type", "new_event", "app_name", appName, "event_name", eventName, "created_by", createdBy)
	return event, nil
}

func (s *CatalogService) logFailure(ctx context.Context, kind string, err error, args ...any) {
	args = append(args, "error", err)
	var invalid *domain.InvalidDataInstanceTypeError
	if errors.Is(err, domain.ErrDomain) && !errors.As(err, &invalid) {
		s.logger.Warn(ctx, "catalog validation failure", append([]any{"type", kind + "_validation_failure"}, args...)...)
		return
	}
	s.logger.Error(ctx, "catalog failure", append([]any{"type", kind + "_failure"}, args...)...)
}

func generateSecureToken() (string, error) {
	buf := make([]byte, secureTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secure token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

type UserService struct {
	identity  ports.IdentityProvider
	directory ports.Directory
	users     ports.UserRepository
	resolver  *PermissionResolver
	logger    ports.Logger
	now       func() time.Time
}

func NewUserService(identity ports.IdentityProvider, directory ports.Directory, users ports.UserRepository, resolver *PermissionResolver, logger ports.Logger) *UserService {
	return &UserService{
		identity:  identity,
		directory: directory,
		users:     users,
		resolver:  resolver,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *UserService) AuthorizeURL(state string) string {
	return s.identity.AuthorizeURL(state)
}

// Login completes the OAuth handshake and materializes the user's roles.
func (s *UserService) Login(ctx context.Context, code string) (domain.User, error) {
	if code == "" {
		return domain.User{}, domain.ErrInvalidInput
	}
	token, err := s.identity.Exchange(ctx, code)
	if err != nil {
		return domain.User{}, fmt.Errorf("exchange oauth code: %w", err)
	}
	login, avatar, err := s.identity.Viewer(ctx, token)
	if err != nil {
		return domain.User{}, fmt.Errorf("query viewer: %w", err)
	}
	user, err := s.buildUser(ctx, login, avatar)
	if err != nil {
		return domain.User{}, err
	}
	s.logger.Info(ctx, "user logged in", "login", user.ID, "roles", user.Roles)
	return user, nil
}

// Load returns the stored user for a session and records activity. A user
// missing from the store is rebuilt from the directory.
func (s *UserService) Load(ctx context.Context, login string) (domain.User, error) {
	if login == "" {
		return domain.User{}, domain.ErrInvalidInput
	}
	user, err := s.users.Get(ctx, login)
	if errors.Is(err, domain.ErrNotFound) {
		return s.buildUser(ctx, login, "")
	}
	if err != nil {
		return domain.User{}, err
	}
	user.Ping(s.now())
	if err := s.users.Touch(ctx, login, user.LastSeen); err != nil {
		s.logger.Warn(ctx, "failed to record user activity", "login", login, "error", err)
	}
	return user, nil
}

func (s *UserService) buildUser(ctx context.Context, login, avatar string) (domain.User, error) {
	teams, err := s.directory.UserTeams(ctx, login)
	if err != nil {
		return domain.User{}, fmt.Errorf("query team memberships for %s: %w", login, err)
	}
	memberships := DetermineMemberships(login, teams)
	if teams.Avatar != "" {
		avatar = teams.Avatar
	}
	user := domain.User{
		ID:     login,
		Avatar: avatar,
		Roles:  s.resolver.Resolve(login, memberships),
		Teams:  memberships,
	}
	user.Ping(s.now())
	if err := s.users.Save(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("save user %s: %w", login, err)
	}
	return user, nil
}
