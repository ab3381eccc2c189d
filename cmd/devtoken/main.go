// Command devtoken mints an access token for local testing. Identity is
// owned by an external provider, so there is no login endpoint.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tutorhub/tutorhub-api/internal/config"
	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
	"github.com/tutorhub/tutorhub-api/internal/pkg/jwt"
)

func main() {
	role := flag.String("role", identity.RoleStudent, "student, teacher or admin")
	id := flag.String("user", "", "user id (random when empty)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.Load()
	if cfg.IsProduction() {
		log.Fatal("devtoken refuses to run with ENV=production")
	}

	token, userID, err := mint(cfg.JWTSecret, *role, *id, *ttl)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("user_id: %s\nrole:    %s\n\n%s\n", userID, *role, token)
}

func mint(secret, role, id string, ttl time.Duration) (string, uuid.UUID, error) {
	if !identity.ValidRole(role) {
		return "", uuid.Nil, fmt.Errorf("unknown role %q", role)
	}

	userID := uuid.New()
	if id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return "", uuid.Nil, fmt.Errorf("invalid user id: %w", err)
		}
		userID = parsed
	}

	token, err := jwt.NewService(secret, ttl).GenerateAccessToken(userID, role)
	if err != nil {
		return "", uuid.Nil, err
	}
	return token, userID, nil
}
