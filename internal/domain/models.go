package domain

import (
	"regexp"
	"strings"
	"time"
)

const MaxNameLength = 64

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{3,}$`)

// ValidateName checks an application or event name: lowercase ascii starting
// with a letter, followed by at least three letters, digits or underscores.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLength || !namePattern.MatchString(name) {
		return ErrInvalidInput
	}
	return nil
}

// Item is an entity admitted into the catalog cache. The set of
// implementations is closed: Application and Event.
type Item interface {
	isItem()
}

type Application struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedOn time.Time `json:"created_on"`
	Events    []Event   `json:"events"`
}

type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedBy   string    `json:"created_by"`
	CreatedOn   time.Time `json:"created_on"`
	ParentAppID string    `json:"parent_id"`
}

func (Application) isItem() {}
func (Event) isItem()       {}

// Clone returns a copy that shares no event storage with a.
func (a Application) Clone() Application {
	out := a
	out.Events = make([]Event, len(a.Events))
	copy(out.Events, a.Events)
	return out
}

// EventByName returns the child event called name.
func (a Application) EventByName(name string) (Event, bool) {
	for _, e := range a.Events {
		if e.Name == name {
			return e, true
		}
	}
	return Event{}, false
}

// Permission is a bit flag; a user holds a list of single-flag values.
type Permission uint8

const (
	PermissionUnauthorized Permission = 1
	PermissionRead         Permission = 2
	PermissionWrite        Permission = 4
	PermissionAdmin        Permission = 8
)

func (p Permission) String() string {
	switch p {
	case PermissionUnauthorized:
		return "UNAUTHORIZED"
	case PermissionRead:
		return "READ"
	case PermissionWrite:
		return "WRITE"
	case PermissionAdmin:
		return "ADMIN"
	default:
		return "UNKNOWN"
	}
}

func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := ParsePermission(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func ParsePermission(s string) (Permission, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UNAUTHORIZED":
		return PermissionUnauthorized, nil
	case "READ":
		return PermissionRead, nil
	case "WRITE":
		return PermissionWrite, nil
	case "ADMIN":
		return PermissionAdmin, nil
	default:
		return 0, ErrInvalidInput
	}
}

type TeamMembership struct {
	Name     string `json:"name"`
	Slug     string `json:"id"`
	IsMember bool   `json:"is_member"`
}

// User is the authenticated portal user. It is rebuilt on every login;
// afterwards only LastSeen changes.
type User struct {
	ID       string           `json:"id"`
	Avatar   string           `json:"avatar"`
	Roles    []Permission     `json:"roles"`
	Teams    []TeamMembership `json:"teams"`
	LastSeen time.Time        `json:"last_seen"`
}

func (u User) Can(p Permission) bool {
	for _, role := range u.Roles {
		if role == p {
			return true
		}
	}
	return false
}

func (u User) IsAdministrator() bool { return u.Can(PermissionAdmin) }
func (u User) HasReadAccess() bool   { return u.Can(PermissionRead) }
func (u User) HasWriteAccess() bool  { return u.Can(PermissionWrite) }

// Ping records activity.
func (u *User) Ping(now time.Time) {
	u.LastSeen = now.UTC()
}
