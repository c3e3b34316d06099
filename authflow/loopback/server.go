package loopback

import (
	"context"
	"errors"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const CallbackPath = "/callback"

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em;">
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
</body>
</html>
`))

type pageData struct {
	Title   string
	Message string
}

// Server is a loopback HTTP listener that accepts the login redirect at
// /callback and hands its query parameters to the registered handler.
type Server struct {
	listener net.Listener
	http     *http.Server

	mu         sync.Mutex
	handler    func(url.Values)
	generation int
}

// Listen starts serving on addr, e.g. "127.0.0.1:0" for an ephemeral port.
func Listen(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "[loopback.Listen] listen on %s", addr)
	}

	s := &Server{listener: listener}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+CallbackPath, s.handleCallback)
	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Str("addr", listener.Addr().String()).Msg("Callback server stopped")
		}
	}()
	log.Debug().Str("addr", listener.Addr().String()).Msg("Callback server listening")
	return s, nil
}

// Addr is the address the server is bound to
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// CallbackURI returns the URI the login page should redirect back to
func (s *Server) CallbackURI(context.Context) (string, error) {
	return "http://" + s.Addr() + CallbackPath, nil
}

// RegisterOnce installs handler for the next callback, replacing any earlier
// registration. cancel only clears the registration it was returned for.
func (s *Server) RegisterOnce(handler func(url.Values)) func() {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.handler = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation == gen {
			s.handler = nil
		}
	}
}

func (s *Server) takeHandler() func(url.Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.handler
	s.handler = nil
	return h
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	handler := s.takeHandler()
	if handler == nil {
		writePage(w, http.StatusGone, pageData{
			Title:   "No login in progress",
			Message: "This sign-in link has expired. Start the login again from the application.",
		})
		return
	}

	handler(r.URL.Query())
	writePage(w, http.StatusOK, pageData{
		Title:   "Sign-in received",
		Message: "You can close this window and return to the application.",
	})
}

func writePage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := resultPage.Execute(w, data); err != nil {
		log.Err(err).Msg("Failed to render callback page")
	}
}

// Close stops the server, waiting for in-flight requests until ctx is done.
func (s *Server) Close(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return pkgerrors.Wrap(err, "[Server.Close]")
	}
	return nil
}
