// Command token mints an access token for an existing profile.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"garantias.org/internal/auth"
	"garantias.org/internal/config"
	"garantias.org/internal/store/memory"
	"garantias.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	var (
		configPath = flag.String("config", "config.yaml", "Path to optional YAML config")
		userID     = flag.String("user", "", "Profile user id")
		ttl        = flag.Duration("ttl", 0, "Token lifetime (defaults to the configured access ttl)")
	)
	flag.Parse()
	if *userID == "" {
		log.Fatal("usage: token -user <profile id> [-ttl 1h]")
	}

	cfg, err := config.Load(*configPath, "")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var directory auth.Directory
	if cfg.Local() {
		directory = memory.New(memory.DemoProfiles()...)
	} else {
		store, err := pg.Open(cfg.Database.DSN, pg.PoolConfig{MaxOpenConns: 1})
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer store.Close()
		directory = store
	}

	accessTTL := cfg.Auth.AccessTTL
	if *ttl > 0 {
		accessTTL = *ttl
	}
	tokens, err := auth.NewService(directory, cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(accessTTL))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	profile, err := directory.Profile(ctx, *userID)
	if err != nil {
		log.Fatalf("lookup profile: %v", err)
	}
	if !profile.Active {
		log.Fatalf("profile %s is inactive", profile.UserID)
	}

	token, exp, err := tokens.IssueToken(profile.UserID)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	log.Printf("token for %s (%s %s), expires %s", profile.Email, profile.Role, profile.Region, exp.Format(time.RFC3339))
	fmt.Println(token)
}
