package auth

import "context"

const (
	RoleUser   = "user"
	RoleHost   = "host"
	RoleAdmin  = "admin"
	RoleSystem = "system"
)

// Actor is the principal performing a request, as supplied by the identity provider.
type Actor struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (a Actor) IsZero() bool {
	return a.UserID == ""
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

// CanHost reports whether the actor may list cars.
func (a Actor) CanHost() bool {
	return a.Role == RoleHost || a.Role == RoleAdmin
}

// Owns reports whether the actor is the given owner or an administrator.
func (a Actor) Owns(ownerID string) bool {
	return a.IsAdmin() || (a.UserID != "" && a.UserID == ownerID)
}

func System() Actor {
	return Actor{UserID: RoleSystem, Role: RoleSystem}
}

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleHost, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && !a.IsZero()
}
