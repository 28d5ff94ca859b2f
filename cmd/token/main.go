// Command token prints a bearer token for calling the API with AUTH_ENABLED.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/amrrdev/docflow/internal/config"
	"github.com/amrrdev/docflow/internal/jwt"
)

func main() {
	var (
		clientID = flag.String("client", "dev", "Client id to embed in the token")
		ttl      = flag.Duration("ttl", 0, "Token lifetime (defaults to ACCESS_TOKEN_TTL)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWTSecretKey == "" {
		log.Fatal("JWT_SECRET_KEY is not set")
	}

	lifetime := cfg.AccessTokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := jwt.NewService(cfg.JWTSecretKey, lifetime).GenerateAccessToken(*clientID)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(token)
	log.Printf("Token for %q valid for %s", *clientID, lifetime.Round(time.Second))
}
