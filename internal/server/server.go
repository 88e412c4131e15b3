package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"uglink/internal/config"
	"uglink/internal/constants"
	"uglink/internal/logger"
	"uglink/internal/session"
)

// CredentialProvider hands out the cached proxy credential, logging in when
// needed.
type CredentialProvider interface {
	Credential(ctx context.Context) (session.ProxyCredential, error)
}

// Forwarder relays a request to the credential's origin.
type Forwarder interface {
	Forward(w http.ResponseWriter, r *http.Request, cred session.ProxyCredential)
}

type Server struct {
	Store      session.Store
	Auth       CredentialProvider
	Forwarder  Forwarder
	Events     *logger.Logger
	ListenAddr string
}

func NewServer(cfg *config.Config, store session.Store, auth CredentialProvider, forwarder Forwarder, events *logger.Logger) *Server {
	return &Server{
		Store:      store,
		Auth:       auth,
		Forwarder:  forwarder,
		Events:     events,
		ListenAddr: cfg.ListenAddr,
	}
}

// Handler routes the health endpoint and relays everything else. No ServeMux:
// it would clean "//", "/./" and "/../" out of paths the origin must see as sent.
func (s *Server) Handler() http.Handler {
	health := SecurityHeaders(http.HandlerFunc(s.HandleHealth))

	return RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == constants.EndpointHealth {
			health.ServeHTTP(w, r)
			return
		}
		s.HandleProxy(w, r)
	}))
}

func (s *Server) Run() {
	server := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("🚀 %s %s listening on %s (HTTP/2 cleartext enabled)", constants.AppName, constants.Version, s.ListenAddr)

	<-sigChan
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	s.Cleanup()
	log.Println("✅ Server stopped")
}

func (s *Server) Cleanup() {
	if err := s.Store.Close(); err != nil {
		log.Printf("⚠️  Failed to close credential cache: %v", err)
	}
	if err := s.Events.Close(); err != nil {
		log.Printf("⚠️  Failed to close audit log: %v", err)
	}
}
