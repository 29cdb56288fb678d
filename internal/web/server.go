package web

import (
	"net/http"

	"mdtasks/internal/config"
	"mdtasks/internal/render"
	"mdtasks/internal/syncer"
	"mdtasks/internal/workspace"
)

type Server struct {
	cfg      config.Config
	ws       *workspace.Workspace
	coord    *syncer.Coordinator
	renderer *render.Renderer
	events   *Hub
	mux      *http.ServeMux
	views    *Templates
	auth     *Auth
	limiter  *rateLimiter
}

// NewServer wires the HTTP surface. hub must be the sink the coordinator
// publishes to.
func NewServer(cfg config.Config, ws *workspace.Workspace, coord *syncer.Coordinator, hub *Hub, renderer *render.Renderer) (*Server, error) {
	auth, err := newAuth(cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		ws:       ws,
		coord:    coord,
		renderer: renderer,
		events:   hub,
		mux:      http.NewServeMux(),
		views:    MustParseTemplates(),
		auth:     auth,
		limiter:  newRateLimiter(cfg.ToggleRatePerMin),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	if s.auth != nil {
		return s.auth.Middleware(s.mux)
	}
	return anonymous(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleHome)
	s.mux.HandleFunc("/docs/", s.handleDoc)
	s.mux.HandleFunc("/events", s.handleEvents)
	s.mux.HandleFunc("/static/chroma.css", s.handleChromaCSS)
	s.mux.HandleFunc("/api/docs", s.handleAPIDocs)
	s.mux.HandleFunc("/api/tasks", s.handleAPITasks)
	s.mux.HandleFunc("/api/progress", s.handleAPIProgress)
	s.mux.HandleFunc("/api/tree", s.handleAPITree)
	s.mux.HandleFunc("/api/toggle", s.handleAPIToggle)
	s.mux.HandleFunc("/api/scroll", s.handleAPIScroll)
	s.mux.HandleFunc("/api/headers", s.handleAPIHeaders)
}
