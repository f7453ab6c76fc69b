package http

import (
	"net/http"
	"strings"
	"time"

	"hisab/internal/auth"
	"hisab/internal/log"
)

type pinRequest struct {
	PIN string `json:"pin"`
}

type sessionResponse struct {
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	// Enabled is false when the server runs without a PIN.
	Enabled bool `json:"enabled"`
}

func (s *Server) handlePINLogin(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}

	var req pinRequest
	if err := DecodeJSON(w, r, s.maxBodyBytes, &req); err != nil {
		s.writeError(w, r, "Invalid PIN request", err, log.OpValidate)
		return
	}

	token, expires, err := s.gate.Login(strings.TrimSpace(req.PIN))
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentAuth).WarnContext(r.Context(), "PIN login rejected",
			log.FieldClientIP, s.clientIP(r))
		FromError(err).Write(w)
		return
	}

	resp := sessionResponse{Token: token, Enabled: s.gate.Enabled()}
	if token != "" {
		resp.ExpiresAt = &expires
	}
	SuccessResponse(resp).Write(w)
}

// requireSession rejects API requests that carry no valid bearer token. The
// PIN endpoint itself is exempt.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.gate.Enabled() || !strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == routePIN {
			next.ServeHTTP(w, r)
			return
		}

		if _, err := s.gate.Validate(auth.BearerToken(r.Header.Get("Authorization"))); err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentAuth).WarnContext(r.Context(), "Session rejected",
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.clientIP(r),
				log.FieldError, err)
			UnauthorizedError().Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
