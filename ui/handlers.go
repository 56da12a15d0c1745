package ui

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"popdash/domain/core"
	"popdash/domain/population"
	"popdash/internal/api"
	apperrors "popdash/internal/errors"
	"popdash/internal/render"
	"popdash/internal/store"
)

// TimeRanges are the selectable series lengths in years.
var TimeRanges = []int{5, 10, 20, 50, 100}

// PageData is passed to every page template.
type PageData struct {
	Title  string
	Active string
	Snap   store.Snapshot

	Indicators  []population.IndicatorInfo
	Indicator   string
	Ranges      []int
	Range       int
	Year        string
	YearOptions []string

	About template.HTML
}

func (s *Server) handleHome(c *gin.Context) {
	if err := s.store.DispatchHomeFetch(c.Request.Context()); err != nil && !core.IsSuperseded(err) {
		s.logger.Debug("home fetch failed: %v", err)
	}
	s.renderTemplate(c, "home.html", PageData{
		Title:  "Home",
		Active: "home",
		Snap:   s.store.Snapshot(),
	})
}

// handlePopulation runs the series and table dispatches together. Failures
// are part of the snapshot and rendered inline.
func (s *Server) handlePopulation(c *gin.Context) {
	label := c.DefaultQuery("indicator", population.LabelPopulation)
	info := population.ResolveLabel(label)

	years, err := strconv.Atoi(c.DefaultQuery("range", "5"))
	if err != nil {
		years = 0
	}
	year := c.DefaultQuery("year", strconv.Itoa(s.store.ReferenceYear()))

	ctx := c.Request.Context()
	var g errgroup.Group
	g.Go(func() error { return s.store.DispatchSeriesFetch(ctx, info.Label, years) })
	g.Go(func() error { return s.store.DispatchTableFetch(ctx, year) })
	if err := g.Wait(); err != nil && !core.IsSuperseded(err) {
		s.logger.Debug("population fetch failed: %v", err)
	}

	s.renderTemplate(c, "population.html", PageData{
		Title:       "Population",
		Active:      "population",
		Snap:        s.store.Snapshot(),
		Indicators:  population.Indicators(),
		Indicator:   info.Label,
		Ranges:      TimeRanges,
		Range:       years,
		Year:        year,
		YearOptions: yearOptions(s.store.ReferenceYear()),
	})
}

func (s *Server) handleAbout(c *gin.Context) {
	s.renderTemplate(c, "about.html", PageData{
		Title:  "About",
		Active: "about",
		Snap:   s.store.Snapshot(),
		About:  s.about,
	})
}

// handleSeriesChart draws the series currently held by the store, labelled
// with the indicator it was fetched for. ?indicator= names the series the
// page expects; 409 when the store has since loaded another one.
func (s *Server) handleSeriesChart(c *gin.Context) {
	snap := s.store.Snapshot()
	info := snap.Indicator
	if label := c.Query("indicator"); label != "" {
		want, err := population.LookupLabel(label)
		if err != nil {
			appErr := apperrors.ValidationError(err.Error())
			c.String(apperrors.HTTPStatus(appErr), appErr.Error())
			return
		}
		if want.Code != info.Code {
			c.String(http.StatusConflict, "series is %s, not %s", info.Code, want.Code)
			return
		}
	}

	var buf bytes.Buffer
	err := render.SeriesPNG(&buf, info, snap.PopulationData, render.ChartOptions{})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrInsufficientData) {
			status = http.StatusNotFound
		}
		c.String(status, err.Error())
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleTableExport(c *gin.Context) {
	if year := c.Query("year"); year != "" {
		if err := s.store.DispatchTableFetch(c.Request.Context(), year); err != nil {
			c.JSON(apperrors.HTTPStatus(api.ToAppError(err)), gin.H{"error": err.Error(), "detail": population.ViewOf(err)})
			return
		}
	}

	snap := s.store.Snapshot()
	if snap.Table.Status != store.StatusSucceeded {
		c.JSON(http.StatusNotFound, gin.H{"error": "no table loaded"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="population-%s.xlsx"`, snap.TableYear))
	c.Header("Content-Type", s.exporter.ContentType())
	c.Status(http.StatusOK)
	if err := s.exporter.WriteTable(c.Writer, snap.TableYear, snap.TableData); err != nil {
		s.logger.Error("table export failed: %v", err)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": snap.Version,
		"loading": snap.Loading(),
	})
}

// yearOptions lists reference year down to the first published year.
func yearOptions(referenceYear int) []string {
	out := make([]string, 0, referenceYear-population.MinYear+1)
	for y := referenceYear; y >= population.MinYear; y-- {
		out = append(out, strconv.Itoa(y))
	}
	return out
}
