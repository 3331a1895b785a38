package http

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	sessioncontext "packtrack/frontend/shared/context"
	"packtrack/frontend/shared/respond"
	"packtrack/infrastructure/audit"
	"packtrack/infrastructure/cache"
	"packtrack/infrastructure/catalog"
	"packtrack/infrastructure/config"
	"packtrack/infrastructure/lifecycle"
	"packtrack/infrastructure/scansession"
	"packtrack/infrastructure/sqlite"
)

//go:embed assets/*
var assets embed.FS

var ShutdownTimeout = 2 * time.Second

// Server bundles dependencies and route wiring.
type Server struct {
	Addr   string
	ln     net.Listener
	server *http.Server
	router *chi.Mux

	DB       *sqlite.DB
	Machine  *lifecycle.Machine
	Catalog  *catalog.Service
	Sessions *cache.ScanSessionCache
	Audit    *audit.Service
	Recorder scansession.Recorder
	Scan     config.Scan
}

// Deps are the services a Server routes to.
type Deps struct {
	DB       *sqlite.DB
	Machine  *lifecycle.Machine
	Catalog  *catalog.Service
	Sessions *cache.ScanSessionCache
	Audit    *audit.Service
	Recorder scansession.Recorder
	Scan     config.Scan
}

// NewServer creates a new http server.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		Addr:     addr,
		router:   chi.NewRouter(),
		DB:       deps.DB,
		Machine:  deps.Machine,
		Catalog:  deps.Catalog,
		Sessions: deps.Sessions,
		Audit:    deps.Audit,
		Recorder: deps.Recorder,
		Scan:     deps.Scan,
		server: &http.Server{
			MaxHeaderBytes: 1 << 20,
		},
	}
	if s.Sessions == nil {
		s.Sessions = cache.NewScanSessionCache()
	}

	// Secure headers first.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	})

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Compress(5))

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/help", http.StatusSeeOther)
	})

	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Serve assets from embedded FS.
	var assetsFS fs.FS = assets
	if sub, err := fs.Sub(assets, "assets"); err == nil {
		assetsFS = sub
	} else {
		slog.Error("assets subfs init failed; serving fallback fs", slog.Any("err", err))
	}
	s.router.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(assetsFS))))

	s.RegisterHelpRoutes(s.router)
	s.RegisterSessionRoutes(s.router)
	s.RegisterPackageRoutes(s.router)
	s.RegisterCatalogRoutes(s.router)
	s.RegisterExportRoutes(s.router)

	s.server.Handler = s.router
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ScanSessionMiddleware loads the session named by the sessionID URL param
// into the request context.
func (s *Server) ScanSessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		sess, ok := s.Sessions.Get(id)
		if !ok {
			slog.Warn("scan session not found", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("session_id", id))
			respond.Error(w, r, http.StatusNotFound, "not_found", "scan session not found")
			return
		}
		ctx := sessioncontext.NewContextWithScanSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	var err error
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	go s.server.Serve(s.ln)
	return nil
}

// Stop gracefully shuts down the server and closes every open scan session.
func (s *Server) Stop() error {
	if s.ln == nil {
		return fmt.Errorf("HTTP server has not been started or is already stopped")
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %v", err)
	}
	s.ln = nil
	s.closeSessions(ctx)
	return nil
}

func (s *Server) closeSessions(ctx context.Context) {
	for _, sess := range s.Sessions.All() {
		s.Sessions.Remove(sess.ID())
		if err := sess.Close(ctx); err != nil {
			slog.Warn("close scan session on shutdown", slog.String("session_id", sess.ID()), slog.Any("err", err))
		}
	}
}
