package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"popdash/domain/core"
	"popdash/domain/population"
	"popdash/internal"
	apperrors "popdash/internal/errors"
	"popdash/internal/store"
	"popdash/ports"
)

// Dispatcher is the store surface the JSON API drives.
type Dispatcher interface {
	Snapshot() store.Snapshot
	DispatchHomeFetch(ctx context.Context) error
	DispatchSeriesFetch(ctx context.Context, label string, timeRangeYears int) error
	DispatchTableFetch(ctx context.Context, year string) error
}

// Router serves the JSON API under /api/v1.
type Router struct {
	mux      *chi.Mux
	store    Dispatcher
	exporter ports.TableExporter
	logger   *internal.Logger
}

// SeriesRequest is the body of POST /api/v1/series.
type SeriesRequest struct {
	Indicator string `json:"indicator"`
	TimeRange int    `json:"timeRange"`
}

// TableRequest is the body of POST /api/v1/table.
type TableRequest struct {
	Year string `json:"year"`
}

// ErrorResponse is returned with every non-2xx reply.
type ErrorResponse struct {
	Code   string                `json:"code"`
	Error  string                `json:"error"`
	Detail *population.ErrorView `json:"detail,omitempty"`
	State  *store.Snapshot       `json:"state,omitempty"`
}

// NewRouter creates the JSON API. exporter serves /api/v1/table.xlsx.
func NewRouter(s Dispatcher, exporter ports.TableExporter) *Router {
	r := &Router{
		mux:      chi.NewRouter(),
		store:    s,
		exporter: exporter,
		logger:   internal.DefaultLogger.WithComponent("api"),
	}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) setupMiddleware() {
	r.mux.Use(middleware.RequestID)
	r.mux.Use(middleware.Logger)
	r.mux.Use(middleware.Recoverer)
}

func (r *Router) setupRoutes() {
	r.mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.mux.Route("/api/v1", func(api chi.Router) {
		api.Get("/state", r.handleState)
		api.Get("/indicators", r.handleIndicators)
		api.Post("/home", r.handleHome)
		api.Post("/series", r.handleSeries)
		api.Post("/table", r.handleTable)
		api.Get("/table.xlsx", r.handleTableExport)
	})
}

func (r *Router) handleState(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.store.Snapshot())
}

func (r *Router) handleIndicators(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, population.Indicators())
}

func (r *Router) handleHome(w http.ResponseWriter, req *http.Request) {
	err := r.store.DispatchHomeFetch(req.Context())
	r.respondDispatch(w, err)
}

func (r *Router) handleSeries(w http.ResponseWriter, req *http.Request) {
	var body SeriesRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.writeError(w, apperrors.ValidationError(fmt.Sprintf("invalid request body: %v", err)), nil)
		return
	}
	if body.Indicator == "" {
		body.Indicator = population.LabelPopulation
	}
	err := r.store.DispatchSeriesFetch(req.Context(), body.Indicator, body.TimeRange)
	r.respondDispatch(w, err)
}

func (r *Router) handleTable(w http.ResponseWriter, req *http.Request) {
	var body TableRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.writeError(w, apperrors.ValidationError(fmt.Sprintf("invalid request body: %v", err)), nil)
		return
	}
	err := r.store.DispatchTableFetch(req.Context(), body.Year)
	r.respondDispatch(w, err)
}

// handleTableExport writes the current table; ?year= fetches that year first.
func (r *Router) handleTableExport(w http.ResponseWriter, req *http.Request) {
	if year := req.URL.Query().Get("year"); year != "" {
		if err := r.store.DispatchTableFetch(req.Context(), year); err != nil {
			r.writeError(w, ToAppError(err), population.ViewOf(err))
			return
		}
	}

	snap := r.store.Snapshot()
	if snap.Table.Status != store.StatusSucceeded {
		r.writeError(w, apperrors.NotFound("table for the selected year"), nil)
		return
	}

	w.Header().Set("Content-Type", r.exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="population-%s.xlsx"`, snap.TableYear))
	if err := r.exporter.WriteTable(w, snap.TableYear, snap.TableData); err != nil {
		r.logger.Error("table export failed: %v", err)
	}
}

// respondDispatch replies with the settled snapshot, or the mapped error.
func (r *Router) respondDispatch(w http.ResponseWriter, err error) {
	snap := r.store.Snapshot()
	if err != nil {
		appErr := ToAppError(err)
		resp := ErrorResponse{
			Code:   apperrors.GetCode(appErr),
			Error:  err.Error(),
			Detail: population.ViewOf(err),
			State:  &snap,
		}
		if core.IsSuperseded(err) {
			resp.Detail = nil
		}
		writeJSON(w, apperrors.HTTPStatus(appErr), resp)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (r *Router) writeError(w http.ResponseWriter, err error, detail *population.ErrorView) {
	writeJSON(w, apperrors.HTTPStatus(err), ErrorResponse{
		Code:   apperrors.GetCode(err),
		Error:  err.Error(),
		Detail: detail,
	})
}

// ToAppError classifies a dispatch error for the HTTP surfaces.
func ToAppError(err error) error {
	switch {
	case err == nil:
		return nil
	case core.IsSuperseded(err):
		return apperrors.Conflict("a newer request replaced this one", err)
	case errors.Is(err, core.ErrInvalidRange):
		return apperrors.WithCode(apperrors.CodeInvalidInput, err)
	case core.IsFetchError(err):
		return apperrors.ExternalServiceError("worldbank", err)
	default:
		return apperrors.Wrap(err, "dispatch failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		internal.DefaultLogger.Error("failed to encode response: %v", err)
	}
}
