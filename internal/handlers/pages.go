package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/BradenHooton/attendly/internal/models"
	pkghttp "github.com/BradenHooton/attendly/pkg/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// Pages holds the parsed server-rendered pages
type Pages struct {
	login     *template.Template
	register  *template.Template
	dashboard *template.Template
}

// pageData is what every page template sees
type pageData struct {
	Title     string
	CSRFToken string
	Flash     *models.Flash
	Username  string
	Current   models.CurrentSession
}

// NewPages parses the embedded templates
func NewPages() (*Pages, error) {
	parse := func(page string) (*template.Template, error) {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", page, err)
		}
		return tmpl, nil
	}

	login, err := parse("login.html")
	if err != nil {
		return nil, err
	}
	register, err := parse("register.html")
	if err != nil {
		return nil, err
	}
	dashboard, err := parse("dashboard.html")
	if err != nil {
		return nil, err
	}
	return &Pages{login: login, register: register, dashboard: dashboard}, nil
}

// render executes into a buffer so a template error never leaves a half-written page
func (p *Pages) render(w http.ResponseWriter, tmpl *template.Template, data pageData) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		pkghttp.WriteInternalError(w, models.MsgTryAgainLater)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}
