package main

import (
	"log"

	"uglink/internal/auth"
	"uglink/internal/config"
	"uglink/internal/logger"
	"uglink/internal/proxy"
	"uglink/internal/server"
	"uglink/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var events *logger.Logger
	if cfg.AuditLogPath != "" {
		events, err = logger.Open(cfg.AuditLogPath)
		if err != nil {
			log.Printf("Warning: Failed to initialize audit log: %v", err)
		} else {
			log.Printf("📝 Audit log: %s", events.GetLogPath())
		}
	}

	if cfg.InsecureSkipVerify {
		log.Println("⚠️  TLS verification disabled for upstream connections")
	}

	store := session.NewStore(cfg.Redis, cfg.CachePrefix)
	authenticator := auth.NewAuthenticator(cfg, store, nil, events)
	forwarder := proxy.New(proxy.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Events:             events,
	})

	server.NewServer(cfg, store, authenticator, forwarder, events).Run()
}
