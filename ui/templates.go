package ui

import (
	"bytes"
	"html/template"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"popdash/domain/population"
	"popdash/internal/render"
)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"population": render.FormatPopulation,
		"rounded":    render.FormatRounded,
		"value":      render.FormatValue,
		"valuePtr":   render.FormatPtr,
		"change": func(v *float64) string {
			if v == nil {
				return render.NotAvailable
			}
			return render.FormatChange(*v)
		},
		"errorView": population.ViewOf,
	}
}

// renderTemplate executes a template into a buffer first so a failure never
// sends a half-written page.
func (s *Server) renderTemplate(c *gin.Context, templateName string, data interface{}) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		s.logger.Error("template error for %s: %v", templateName, err)
		c.AbortWithStatusJSON(500, gin.H{"error": "Template rendering failed", "details": err.Error()})
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Writer.WriteHeader(200)
	if _, err := buf.WriteTo(c.Writer); err != nil {
		s.logger.Warn("error writing template response: %v", err)
	}
}

func renderMarkdown(md []byte) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return template.HTML(markdown.ToHTML(md, p, r))
}
