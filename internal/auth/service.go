package auth

import (
	"context"
	"strings"

	"github.com/hedeshawqiomer/my-app-backend/internal/apperr"
	"github.com/hedeshawqiomer/my-app-backend/internal/db"

	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	db        db.Querier
	sessions  *Sessions
	allowlist map[string]bool
}

// NewService builds the login service. allowedAdmins is the comma-separated
// email allowlist; accounts outside it cannot log in even with a valid
// password.
func NewService(q db.Querier, sessions *Sessions, allowedAdmins string) *Service {
	allow := make(map[string]bool)
	for _, e := range strings.Split(allowedAdmins, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			allow[e] = true
		}
	}
	return &Service{db: q, sessions: sessions, allowlist: allow}
}

var errInvalidCredentials = apperr.New(apperr.KindUnauthenticated, "invalid credentials")

// Login checks the allowlist before the password so that the response never
// reveals which of the two rejected the attempt.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Identity, string, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, password_hash, role
		FROM users WHERE email = $1
	`, req.Email)

	var id Identity
	var hash string
	if err := row.Scan(&id.ID, &id.Email, &hash, &id.Role); err != nil {
		return Identity{}, "", errInvalidCredentials
	}

	if !s.allowlist[strings.ToLower(id.Email)] {
		return Identity{}, "", errInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		return Identity{}, "", errInvalidCredentials
	}

	token, err := s.sessions.Create(ctx, id)
	if err != nil {
		return Identity{}, "", apperr.Wrap(apperr.KindUnavailable, "create session", err)
	}
	return id, token, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}
