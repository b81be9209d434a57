// Package server provides the template preview server: it renders
// templates over HTTP, watches the template roots for changes and
// pushes live-reload events to connected browsers over websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/stencilhq/stencil/internal/environment"
	stencilerrors "github.com/stencilhq/stencil/internal/errors"
	"github.com/stencilhq/stencil/internal/logging"
	"github.com/stencilhq/stencil/internal/watcher"
)

// EnvironmentFactory builds a fresh rendering environment. The server
// swaps in a new environment after every change batch so memoized
// instances never outlive the source they were compiled from.
type EnvironmentFactory func() (*environment.Environment, error)

// Server is the preview HTTP server.
type Server struct {
	host    string
	port    int
	roots   []string
	factory EnvironmentFactory
	logger  logging.Logger

	mu      sync.RWMutex
	env     *environment.Environment
	clients map[*websocket.Conn]struct{}
}

// New creates a preview server over the given template roots.
func New(host string, port int, roots []string, factory EnvironmentFactory, logger logging.Logger) (*Server, error) {
	env, err := factory()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Server{
		host:    host,
		port:    port,
		roots:   roots,
		factory: factory,
		logger:  logger.WithComponent("server"),
		env:     env,
		clients: make(map[*websocket.Conn]struct{}),
	}, nil
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	w, err := watcher.NewTemplateWatcher(300*time.Millisecond, s.logger)
	if err != nil {
		return fmt.Errorf("creating template watcher: %w", err)
	}
	defer w.Stop()

	w.AddFilter(watcher.NoHiddenFilter)
	w.AddHandler(func(events []watcher.ChangeEvent) error {
		return s.onChange(ctx, events)
	})
	for _, root := range s.roots {
		if err := w.AddRecursive(root); err != nil {
			s.logger.Warn(ctx, err, "unable to watch template root", "root", root)
		}
	}
	w.Start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/", s.handleRender)

	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "preview server listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// onChange rebuilds the environment and tells connected browsers to
// reload.
func (s *Server) onChange(ctx context.Context, events []watcher.ChangeEvent) error {
	env, err := s.factory()
	if err != nil {
		return fmt.Errorf("rebuilding environment: %w", err)
	}

	s.mu.Lock()
	s.env = env
	s.mu.Unlock()

	s.logger.Info(ctx, "templates changed, reloading", "changes", len(events))
	s.broadcastReload(ctx)
	return nil
}

func (s *Server) currentEnv() *environment.Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env
}

// handleRender renders the template named by the request path.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" {
		http.Error(w, "template name required, e.g. /page.html", http.StatusNotFound)
		return
	}

	output, err := s.currentEnv().Render(name, queryVars(r))
	if err != nil {
		status := http.StatusInternalServerError
		if stencilerrors.IsLoaderError(err) {
			status = http.StatusNotFound
		}
		s.logger.Warn(r.Context(), err, "render failed", "template", name)
		http.Error(w, err.Error(), status)
		return
	}

	if isHTMLDocument(output) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		output = injectReloadScript(output)
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	_, _ = w.Write([]byte(output))
}

// queryVars turns query parameters into render context variables so
// previews can exercise template inputs without a context file.
func queryVars(r *http.Request) map[string]interface{} {
	vars := make(map[string]interface{})
	for key, values := range r.URL.Query() {
		if len(values) == 1 {
			vars[key] = values[0]
		} else {
			vars[key] = values
		}
	}
	return vars
}

// handleWebsocket registers a live-reload client.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket accept failed")
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	// Block until the client goes away; reads are discarded.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// broadcastReload tells every connected client to reload.
func (s *Server) broadcastReload(ctx context.Context) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		clients = append(clients, conn)
	}
	s.mu.RUnlock()

	for _, conn := range clients {
		writeCtx, cancel := context.WithTimeout(ctx, time.Second)
		err := conn.Write(writeCtx, websocket.MessageText, []byte(`{"type":"reload"}`))
		cancel()
		if err != nil {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
		}
	}
}
