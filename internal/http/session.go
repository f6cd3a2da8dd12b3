package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendtracker/internal/wizard"
)

const sessionCookieName = "spendtracker_session"

// sessionEntry is one browser's wizard. mu serialises the actions of
// concurrent requests from the same browser.
type sessionEntry struct {
	mu     sync.Mutex
	id     string
	wizard *wizard.Session
	// pending is shown on the next full page render after a redirect.
	pending *flash
}

// session returns the caller's wizard session, creating one (and setting the
// cookie) when the request has none or its session expired.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *sessionEntry {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			if entry, ok := s.sessions.Get(c.Value); ok {
				return entry
			}
		}
	}

	id := uuid.NewString()
	entry, _ := s.sessions.GetOrCreate(id, func() *sessionEntry {
		return &sessionEntry{
			id:     id,
			wizard: wizard.NewSession(s.ledger, s.categories, s.wizardOpts),
		}
	})
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.DebugContext(r.Context(), "Session started", "session_id", id)
	return entry
}
