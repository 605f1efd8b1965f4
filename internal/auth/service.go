// Package auth provides bearer-token authentication and role-based access
// control for the HTTP API. Tokens are stored hashed; roles are enforced
// through casbin.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gopenny/gopenny/internal/history"
)

// Role names understood by the enforcer.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Options configures the auth service.
type Options struct {
	// Required forces a valid bearer token on every API request,
	// including reads.
	Required bool
	// AdminTokenHash is a bcrypt hash of the bootstrap admin token. It
	// lets an operator mint the first real tokens on a fresh database.
	AdminTokenHash string
}

type Service struct {
	store    history.Store
	enforcer *casbin.Enforcer
	opts     Options
}

func NewService(s history.Store, opts Options) (*Service, error) {
	m, err := model.NewModelFromString(`
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (r.obj == p.obj || p.obj == "*") && (r.act == p.act || p.act == "*")
`)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	// Admin can do everything
	e.AddPolicy(RoleAdmin, "*", "*")
	// Editor can read everything and mutate the cache and settings
	e.AddPolicy(RoleEditor, "*", "read")
	e.AddPolicy(RoleEditor, "cache", "write")
	e.AddPolicy(RoleEditor, "settings", "write")
	// Viewer can only read
	e.AddPolicy(RoleViewer, "*", "read")

	return &Service{store: s, enforcer: e, opts: opts}, nil
}

// Required reports whether anonymous requests are rejected outright.
func (s *Service) Required() bool { return s.opts.Required }

// CreateToken mints a new API token. The raw value is returned exactly once;
// only its SHA-256 hash is persisted.
func (s *Service) CreateToken(ctx context.Context, name, role string, expiresAt *time.Time) (*history.Token, string, error) {
	switch role {
	case RoleAdmin, RoleEditor, RoleViewer:
	default:
		return nil, "", errors.New("unknown role: " + role)
	}

	rawToken := uuid.New().String() + uuid.New().String()

	t := history.Token{
		ID:        uuid.New().String(),
		Name:      name,
		TokenHash: hashToken(rawToken),
		Role:      role,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}

	if err := s.store.CreateToken(ctx, t); err != nil {
		return nil, "", err
	}

	return &t, rawToken, nil
}

// ValidateToken resolves a raw bearer value to a stored token, falling back
// to the bootstrap admin hash so a fresh deployment can mint its first
// tokens.
func (s *Service) ValidateToken(ctx context.Context, rawToken string) (*history.Token, error) {
	t, err := s.store.GetTokenByHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if t == nil {
		if s.opts.AdminTokenHash != "" &&
			bcrypt.CompareHashAndPassword([]byte(s.opts.AdminTokenHash), []byte(rawToken)) == nil {
			return &history.Token{ID: "bootstrap-admin", Name: "bootstrap", Role: RoleAdmin}, nil
		}
		return nil, errors.New("invalid token")
	}

	if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("token expired")
	}

	// Update last used
	go s.store.TouchToken(context.Background(), t.ID, time.Now())

	return t, nil
}

func (s *Service) Enforce(role, obj, act string) (bool, error) {
	return s.enforcer.Enforce(role, obj, act)
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
