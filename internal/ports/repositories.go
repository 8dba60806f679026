package ports

import (
	"context"
	"time"

	"ecselfservice/internal/domain"
)

// EventCollector is the backend system of record for applications and events.
type EventCollector interface {
	CreateApplication(ctx context.Context, name, createdBy string) (domain.Application, error)
	CreateEvent(ctx context.Context, app domain.Application, name, createdBy string) (domain.Event, error)
	ListApplications(ctx context.Context) ([]domain.Application, error)
	ListEvents(ctx context.Context, app domain.Application) ([]domain.Event, error)
}

type TeamMember struct {
	Login string
	Name  string
	Role  string
}

// TeamRecord is one team's answer to the membership query, narrowed to the
// queried login.
type TeamRecord struct {
	Name        string
	Slug        string
	Description string
	Total       int
	Members     []TeamMember
}

// UserTeams maps every configured team slug to its record. A nil record means
// the team was not visible for that user.
type UserTeams struct {
	Avatar string
	Teams  map[string]*TeamRecord
}

type Directory interface {
	UserTeams(ctx context.Context, login string) (UserTeams, error)
}

type IdentityProvider interface {
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (accessToken string, err error)
	Viewer(ctx context.Context, accessToken string) (login, avatar string, err error)
}

type UserRepository interface {
	Save(ctx context.Context, user domain.User) error
	Get(ctx context.Context, login string) (domain.User, error)
	Touch(ctx context.Context, login string, lastSeen time.Time) error
}

type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Debug(ctx context.Context, msg string, args ...any)
}
