package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tradepairs/pairs-backend/internal/auth"
	"github.com/tradepairs/pairs-backend/internal/config"
)

var (
	flags   = flag.NewFlagSet("admintoken", flag.ExitOnError)
	subject = flags.String("subject", "", "operator identity recorded on maintenance changes")
	role    = flags.String("role", auth.RoleAdmin, "token role (admin or owner)")
	ttl     = flags.Duration("ttl", time.Hour, "token lifetime")
)

func main() {
	flags.Parse(os.Args[1:])

	if *subject == "" {
		log.Fatal("Usage: admintoken -subject NAME [-role admin|owner] [-ttl 1h]")
	}
	if *role != auth.RoleAdmin && *role != auth.RoleOwner {
		log.Fatalf("Unknown role: %s", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.AdminEnabled() {
		log.Fatal("PAIRS_ADMIN_JWT_SECRET is not set")
	}

	svc := auth.NewService(cfg.Security.AdminJWTIssuer, []byte(cfg.Security.AdminJWTSecret))
	token, err := svc.Issue(*subject, *role, *ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Println(token)
}
