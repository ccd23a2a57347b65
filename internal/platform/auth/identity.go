package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Role constants used throughout the API when checking authorisation boundaries.
const (
	RoleUser    = "user"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
	RoleRider   = "rider"
	RoleCashier = "cashier"
)

// ErrProfileLoaderUnavailable indicates that the identity was created without a profile loader.
var ErrProfileLoaderUnavailable = errors.New("auth: profile loader not configured")

// Profile carries the customer-facing contact details served by the identity
// service's profile endpoint.
type Profile struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
}

// DisplayName renders the profile holder's name, defaulting to "User".
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name == "" {
		return "User"
	}
	return name
}

// Identity captures the authenticated principal as reported by the identity
// service, plus the raw bearer token forwarded to downstream collaborators.
type Identity struct {
	Username string
	Role     string
	Token    string

	profileLoader ProfileLoader
	once          sync.Once
	profile       Profile
	profileErr    error
}

// NewIdentity constructs an identity with an explicit profile loader. The
// verifier builds identities itself; this exists for wiring and tests.
func NewIdentity(username, role, token string, loader ProfileLoader) *Identity {
	return &Identity{
		Username:      strings.TrimSpace(username),
		Role:          strings.ToLower(strings.TrimSpace(role)),
		Token:         token,
		profileLoader: loader,
	}
}

// HasRole reports whether the identity carries the requested role (case-insensitive).
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	return strings.EqualFold(i.Role, role)
}

// HasAnyRole reports whether the identity carries any of the provided roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// Profile resolves the identity-service profile using the injected loader on first access.
func (i *Identity) Profile(ctx context.Context) (Profile, error) {
	if i == nil || i.profileLoader == nil {
		return Profile{}, ErrProfileLoaderUnavailable
	}

	i.once.Do(func() {
		i.profile, i.profileErr = i.profileLoader(ctx, i.Token)
	})

	return i.profile, i.profileErr
}

type contextKey string

const identityContextKey contextKey = "github.com/bleu-oos/payments-api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// ProfileLoader fetches the identity-service profile for a bearer token.
type ProfileLoader func(ctx context.Context, token string) (Profile, error)
