package ui

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"popdash/internal"
	"popdash/internal/api"
	"popdash/internal/store"
	"popdash/ports"
)

//go:embed templates/*.html static content
var embeddedFiles embed.FS

// StateStore is the store surface the dashboard reads and dispatches to.
type StateStore interface {
	api.SnapshotSource
	DispatchHomeFetch(ctx context.Context) error
	DispatchSeriesFetch(ctx context.Context, label string, timeRangeYears int) error
	DispatchTableFetch(ctx context.Context, year string) error
	ReferenceYear() int
}

var _ StateStore = (*store.Store)(nil)

// Server represents the web server for the dashboard
type Server struct {
	router    *gin.Engine
	store     StateStore
	hub       *api.SSEHub
	exporter  ports.TableExporter
	templates *template.Template
	about     template.HTML
	logger    *internal.Logger
}

// NewServer parses the embedded templates, renders the about page and
// registers routes.
func NewServer(s StateStore, hub *api.SSEHub, exporter ports.TableExporter) (*Server, error) {
	templates, err := template.New("").Funcs(templateFuncs()).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	aboutMD, err := embeddedFiles.ReadFile("content/about.md")
	if err != nil {
		return nil, fmt.Errorf("failed to read about page: %w", err)
	}

	srv := &Server{
		router:    gin.New(),
		store:     s,
		hub:       hub,
		exporter:  exporter,
		templates: templates,
		about:     renderMarkdown(aboutMD),
		logger:    internal.DefaultLogger.WithComponent("ui"),
	}

	srv.setupMiddleware()
	srv.setupRoutes()
	return srv, nil
}

// Handler returns the gin engine.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	s.logger.Info("starting dashboard on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Logger(), gin.Recovery())

	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		s.logger.Error("failed to mount static files: %v", err)
		return
	}
	s.router.StaticFS("/static", http.FS(staticFS))
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHome)
	s.router.GET("/population", s.handlePopulation)
	s.router.GET("/population/table.xlsx", s.handleTableExport)
	s.router.GET("/about", s.handleAbout)
	s.router.GET("/charts/series.png", s.handleSeriesChart)
	s.router.GET("/healthz", s.handleHealth)
	if s.hub != nil {
		s.router.GET("/events", s.hub.HandleSSE)
	}
}
