package web

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"mdtasks/internal/index"
	"mdtasks/internal/storage/fs"
	"mdtasks/internal/syncer"
	"mdtasks/internal/workspace"
)

const homeTaskLimit = 50

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	docs, err := s.ws.Store().Documents(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	total, err := s.ws.Store().WorkspaceProgress(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tasks, err := s.ws.Store().OpenTasks(r.Context(), homeTaskLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data := ViewData{
		Title:           "Tasks",
		ContentTemplate: "home",
		User:            s.viewUser(r),
		Documents:       docs,
		Progress:        total,
		OpenTasks:       tasks,
	}
	s.views.RenderPage(w, data)
}

func (s *Server) handleDoc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	doc, err := docParam(strings.TrimPrefix(r.URL.Path, "/docs/"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	text, err := s.ws.Snapshot(r.Context(), doc)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.renderer.RenderOutput(text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	forest := index.BuildText(text)
	title := doc
	for i := range forest.Nodes {
		if forest.Nodes[i].Kind == index.LineHeader {
			title = forest.Nodes[i].Label
			break
		}
	}
	data := ViewData{
		Title:           title,
		ContentTemplate: "doc",
		User:            s.viewUser(r),
		DocPath:         doc,
		RenderedHTML:    template.HTML(out.HTML),
		Progress:        index.Aggregate(forest),
		ShowHeaders:     s.cfg.ShowHeaders,
	}
	s.views.RenderPage(w, data)
}

func (s *Server) handleChromaCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := s.renderer.WriteCSS(w); err != nil {
		slog.Warn("write chroma css", "err", err)
	}
}

func (s *Server) handleAPIDocs(w http.ResponseWriter, r *http.Request) {
	docs, err := s.ws.Store().Documents(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []index.DocumentSummary{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleAPITasks(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	tasks, err := s.ws.Store().OpenTasks(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []index.TaskItem{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleAPIProgress(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("doc")
	var (
		p   index.Progress
		err error
	)
	if raw == "" {
		p, err = s.ws.Store().WorkspaceProgress(r.Context())
	} else {
		var doc string
		doc, err = docParam(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p, err = s.ws.Store().DocumentProgress(r.Context(), doc)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Progress: p, Percent: p.Percent()})
}

type progressResponse struct {
	index.Progress
	Percent int `json:"percent"`
}

func (s *Server) handleAPITree(w http.ResponseWriter, r *http.Request) {
	doc, err := docParam(r.URL.Query().Get("doc"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	showHeaders := s.cfg.ShowHeaders
	if raw := r.URL.Query().Get("headers"); raw != "" {
		showHeaders, err = strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "invalid headers flag", http.StatusBadRequest)
			return
		}
	}
	text, err := s.ws.Snapshot(r.Context(), doc)
	if err != nil {
		writeError(w, err)
		return
	}
	forest := index.BuildText(text)
	progress := index.Aggregate(forest)
	if !showHeaders {
		forest = forest.FlattenHeaders()
	}
	items := forest.Tree()
	if items == nil {
		items = []index.TreeItem{}
	}
	writeJSON(w, http.StatusOK, treeResponse{
		Doc:         doc,
		ShowHeaders: showHeaders,
		Progress:    progress,
		Items:       items,
	})
}

type treeResponse struct {
	Doc         string           `json:"doc"`
	ShowHeaders bool             `json:"show_headers"`
	Progress    index.Progress   `json:"progress"`
	Items       []index.TreeItem `json:"items"`
}

type toggleResponse struct {
	Doc    string             `json:"doc"`
	Line   int                `json:"line"`
	Result index.ToggleResult `json:"result"`
}

func (s *Server) handleAPIToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if user, ok := CurrentUser(r.Context()); !ok || !user.Role.CanEdit() {
		http.Error(w, "read-only user", http.StatusForbidden)
		return
	}
	if !s.limiter.Allow(clientKey(r)) {
		http.Error(w, "too many toggles", http.StatusTooManyRequests)
		return
	}
	doc, line, ok := parseDocLine(w, r)
	if !ok {
		return
	}
	res, err := s.coord.Toggle(r.Context(), doc, line)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Debug("toggle", "doc", doc, "line", line, "result", res.String())
	writeJSON(w, http.StatusOK, toggleResponse{Doc: doc, Line: line, Result: res})
}

func (s *Server) handleAPIScroll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	doc, line, ok := parseDocLine(w, r)
	if !ok {
		return
	}
	s.coord.Scroll(doc, line)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIHeaders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc, err := docParam(r.Form.Get("doc"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	show, err := strconv.ParseBool(r.Form.Get("show"))
	if err != nil {
		http.Error(w, "invalid show flag", http.StatusBadRequest)
		return
	}
	if err := s.coord.SetShowHeaders(r.Context(), doc, show); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseDocLine(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", 0, false
	}
	doc, err := docParam(r.Form.Get("doc"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", 0, false
	}
	line, err := strconv.Atoi(strings.TrimSpace(r.Form.Get("line")))
	if err != nil || line < 0 {
		http.Error(w, "invalid line", http.StatusBadRequest)
		return "", 0, false
	}
	return doc, line, true
}

func docParam(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("doc required")
	}
	return fs.NormalizeDocPath(raw)
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, os.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, fs.ErrUnsafePath), errors.Is(err, workspace.ErrNotDocument):
		status = http.StatusBadRequest
	case errors.Is(err, syncer.ErrUnknownDocument):
		status = http.StatusNotFound
	case errors.Is(err, syncer.ErrEditRejected):
		status = http.StatusConflict
	case errors.Is(err, syncer.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write json", "err", err)
	}
}

func (s *Server) viewUser(r *http.Request) User {
	user, _ := CurrentUser(r.Context())
	return user
}
