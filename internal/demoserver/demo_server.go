// Package demoserver serves a small shop whose pages gain dark patterns as
// their versions are bumped, for demonstrating scans and monitoring.
package demoserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/raysh454/darkscan/internal/logging"
)

// DemoServer serves the versioned demo pages and the control endpoints
// that switch between versions.
type DemoServer struct {
	cfg       Config
	logger    logging.Logger
	pages     map[string]PageDefinition
	templates map[string]map[int]*template.Template

	mu       sync.RWMutex
	versions map[string]int // path -> current version
}

func NewDemoServer(cfg Config, logger logging.Logger) *DemoServer {
	if logger == nil {
		logger = logging.Nop{}
	}
	if cfg.InitialVersion < 1 {
		cfg.InitialVersion = 1
	}

	s := &DemoServer{
		cfg:       cfg,
		logger:    logger,
		pages:     make(map[string]PageDefinition),
		templates: make(map[string]map[int]*template.Template),
		versions:  make(map[string]int),
	}
	for _, p := range AllPages() {
		s.pages[p.Path] = p
		s.versions[p.Path] = clampVersion(p, cfg.InitialVersion)
		s.templates[p.Path] = make(map[int]*template.Template, len(p.Versions))
		for v, pv := range p.Versions {
			name := fmt.Sprintf("%s@%d", p.Path, v)
			s.templates[p.Path][v] = template.Must(template.New(name).Parse(pv.HTML))
		}
	}
	return s
}

// Handler returns the router serving pages and control endpoints.
func (s *DemoServer) Handler() http.Handler {
	r := chi.NewRouter()
	for path := range s.pages {
		r.Get(path, s.pageHandler(path))
	}

	r.Get("/demo/control", s.controlPanelHandler)
	r.Post("/demo/set-version", s.setVersionHandler)
	r.Get("/demo/get-versions", s.getVersionsHandler)
	r.Post("/demo/bump-all", s.bumpAllVersionsHandler)
	r.Post("/demo/reset", s.resetVersionsHandler)
	return r
}

// Start serves until ctx is cancelled.
func (s *DemoServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("demo shop listening",
			logging.Field{Key: "addr", Value: s.cfg.Addr},
			logging.Field{Key: "control", Value: "/demo/control"})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Version returns the version currently served at path.
func (s *DemoServer) Version(path string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[path]
	return v, ok
}

// SetVersion switches path to version, clamped to the available range.
func (s *DemoServer) SetVersion(path string, version int) (int, error) {
	page, ok := s.pages[path]
	if !ok {
		return 0, fmt.Errorf("unknown page %q", path)
	}
	v := clampVersion(page, version)

	s.mu.Lock()
	s.versions[path] = v
	s.mu.Unlock()
	s.logger.Info("page version changed",
		logging.Field{Key: "path", Value: path},
		logging.Field{Key: "version", Value: v})
	return v, nil
}

func (s *DemoServer) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		version := s.versions[path]
		s.mu.RUnlock()

		tmpl := s.templates[path][version]
		var buf bytes.Buffer
		err := tmpl.Execute(&buf, pageData{
			Version:   version,
			Countdown: formatCountdown(s.cfg.CountdownFrom),
		})
		if err != nil {
			s.logger.Error("render page failed",
				logging.Field{Key: "path", Value: path},
				logging.Field{Key: "error", Value: err.Error()})
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}

		for k, v := range s.pages[path].Versions[version].Headers {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func (s *DemoServer) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Pages []pageInfo
	}{Pages: s.pageInfos()}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := controlPanel.Execute(w, data); err != nil {
		s.logger.Warn("render control panel failed", logging.Field{Key: "error", Value: err.Error()})
	}
}

func (s *DemoServer) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	path := r.FormValue("path")
	version, err := strconv.Atoi(r.FormValue("version"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid version number"})
		return
	}

	v, err := s.SetVersion(path, version)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"path":    path,
		"version": v,
	})
}

type pageInfo struct {
	Path              string `json:"path"`
	Description       string `json:"description"`
	CurrentVersion    int    `json:"current_version"`
	AvailableVersions []int  `json:"available_versions"`
}

func (s *DemoServer) pageInfos() []pageInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]pageInfo, 0, len(s.pages))
	for _, path := range slices.Sorted(maps.Keys(s.pages)) {
		page := s.pages[path]
		out = append(out, pageInfo{
			Path:              path,
			Description:       page.Description,
			CurrentVersion:    s.versions[path],
			AvailableVersions: slices.Sorted(maps.Keys(page.Versions)),
		})
	}
	return out
}

func (s *DemoServer) getVersionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pageInfos())
}

// bumpAllVersionsHandler advances every page by one version, stopping at
// its latest.
func (s *DemoServer) bumpAllVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for path, v := range s.versions {
		s.versions[path] = clampVersion(s.pages[path], v+1)
	}
	s.mu.Unlock()

	s.logger.Info("all page versions bumped")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "All versions bumped",
	})
}

func (s *DemoServer) resetVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for path := range s.versions {
		s.versions[path] = clampVersion(s.pages[path], s.cfg.InitialVersion)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("All versions reset to %d", s.cfg.InitialVersion),
	})
}

// clampVersion returns the highest defined version not above v, or the
// lowest defined version when v is below all of them.
func clampVersion(page PageDefinition, v int) int {
	versions := slices.Sorted(maps.Keys(page.Versions))
	best := versions[0]
	for _, candidate := range versions {
		if candidate <= v {
			best = candidate
		}
	}
	return best
}

func formatCountdown(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var controlPanel = template.Must(template.New("control").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Demo Shop Control Panel</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 1000px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .page-card { background: white; border-radius: 8px; padding: 16px; margin: 12px 0; }
        .page-path { font-weight: bold; color: #007bff; }
        .version-btn.active { background: #007bff; color: white; }
        .global-btn { padding: 8px 16px; margin-right: 8px; }
    </style>
</head>
<body>
    <h1>Demo Shop Control Panel</h1>
    <p>Open a page in a darkscan session with monitoring on, then bump its version to watch new patterns get reported.</p>

    <button class="global-btn" onclick="post('/demo/bump-all')">Bump All Versions</button>
    <button class="global-btn" onclick="post('/demo/reset')">Reset All</button>

    {{range .Pages}}
    <div class="page-card">
        <a href="{{.Path}}" target="_blank" class="page-path">{{.Path}}</a>
        <span>Current: v{{.CurrentVersion}}</span>
        <div>{{.Description}}</div>
        <div>
            {{$page := .}}
            {{range .AvailableVersions}}
            <button class="version-btn{{if eq $page.CurrentVersion .}} active{{end}}"
                    onclick="post('/demo/set-version', 'path={{$page.Path}}&version={{.}}')">v{{.}}</button>
            {{end}}
        </div>
    </div>
    {{end}}

    <script>
        function post(url, body) {
            fetch(url, {
                method: 'POST',
                headers: {'Content-Type': 'application/x-www-form-urlencoded'},
                body: body || ''
            }).then(() => location.reload());
        }
    </script>
</body>
</html>`))
