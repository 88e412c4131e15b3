package server

import (
	"errors"
	"io"
	"log"
	"net/http"

	"uglink/internal/auth"
	"uglink/internal/constants"
	"uglink/internal/utils"
)

// HandleProxy is the catch-all entry point: every path is relayed to the
// authenticated origin.
func (s *Server) HandleProxy(w http.ResponseWriter, r *http.Request) {
	cred, err := s.Auth.Credential(r.Context())
	if err != nil {
		message := constants.MsgInternalError
		var herr *auth.Error
		if errors.As(err, &herr) {
			message = herr.PublicMessage()
			log.Printf("❌ Proxy: %s %s from %s rejected, handshake failed at %s", r.Method, r.URL.Path, utils.ClientIP(r), herr.Stage)
		} else {
			log.Printf("❌ Proxy: %s %s from %s rejected: %v", r.Method, r.URL.Path, utils.ClientIP(r), err)
		}
		http.Error(w, message, http.StatusInternalServerError)
		return
	}

	s.Forwarder.Forward(w, r, cred)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}
