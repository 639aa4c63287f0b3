// Command devtoken prints an access token for a user, signed with the
// configured secret. For local development and the end-to-end tests.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/vadim/gigfinder/internal/config"
	"github.com/vadim/gigfinder/internal/httpx/auth"
)

func main() {
	userID := flag.String("user", "", "user id to put in the token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}

	cfg := config.MustLoad()
	token, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer).GenerateToken(*userID, *ttl)
	if err != nil {
		log.Fatalf("signing token: %v", err)
	}
	fmt.Println(token)
}
