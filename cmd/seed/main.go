// Seeds reviewer accounts from SEED_ADMINS ("email:password:role,...").
// Refuses to run against production unless SEED_ALLOW_PROD is set.
package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/hedeshawqiomer/my-app-backend/internal/auth"
	"github.com/hedeshawqiomer/my-app-backend/internal/config"
	"github.com/hedeshawqiomer/my-app-backend/internal/db"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type admin struct {
	Email    string
	Password string
	Role     string
}

func main() {
	cfg := config.Load()

	if cfg.AppEnv == "production" && !cfg.SeedAllowProd {
		log.Fatal("refusing to seed in production without SEED_ALLOW_PROD=true")
	}

	admins, err := parseAdmins(cfg.SeedAdmins)
	if err != nil {
		log.Fatalf("parse SEED_ADMINS: %v", err)
	}
	if len(admins) == 0 {
		log.Fatal("SEED_ADMINS is empty, nothing to seed")
	}

	pool, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	supers, moderators, err := seed(context.Background(), pool, admins, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	log.Printf("seed completed: %d users (super: %d, moderator: %d)", len(admins), supers, moderators)
}

func parseAdmins(raw string) ([]admin, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var admins []admin
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed entry %q, want email:password:role", entry)
		}
		role := parts[2]
		if role != auth.RoleSuper && role != auth.RoleModerator {
			return nil, fmt.Errorf("unknown role %q in entry %q", role, entry)
		}
		admins = append(admins, admin{Email: parts[0], Password: parts[1], Role: role})
	}
	return admins, nil
}

func seed(ctx context.Context, q db.Querier, admins []admin, cost int) (supers, moderators int, err error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	for _, a := range admins {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), cost)
		if err != nil {
			return supers, moderators, err
		}
		_, err = q.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, role)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (email) DO UPDATE SET password_hash=EXCLUDED.password_hash, role=EXCLUDED.role
		`, uuid.NewString(), a.Email, string(hash), a.Role)
		if err != nil {
			return supers, moderators, err
		}
		switch a.Role {
		case auth.RoleSuper:
			supers++
		case auth.RoleModerator:
			moderators++
		}
	}
	return supers, moderators, nil
}
