package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"
)

// Renderer turns a page name and its context into a response.
type Renderer interface {
	Render(w http.ResponseWriter, status int, page string, data map[string]interface{})
}

// TemplateRenderer serves <dir>/<page>.html, each parsed together with
// <dir>/layout.html when that file exists.
type TemplateRenderer struct {
	pages map[string]*template.Template
}

func NewTemplateRenderer(dir string) (*TemplateRenderer, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	layout := filepath.Join(dir, "layout.html")
	hasLayout := false
	for _, f := range files {
		if f == layout {
			hasLayout = true
		}
	}

	pages := make(map[string]*template.Template)
	for _, f := range files {
		if f == layout {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(f), ".html")
		set := []string{f}
		if hasLayout {
			set = append([]string{layout}, f)
		}
		tmpl, err := template.ParseFiles(set...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no templates found in %s", dir)
	}

	return &TemplateRenderer{pages: pages}, nil
}

func (t *TemplateRenderer) Render(w http.ResponseWriter, status int, page string, data map[string]interface{}) {
	tmpl, ok := t.pages[page]
	if !ok {
		logger.Error.Printf("Unknown page template %q", page)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	name := filepath.Base(page) + ".html"
	if tmpl.Lookup("layout.html") != nil {
		name = "layout.html"
	}
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error.Printf("Failed to render %s: %v", page, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// JSONRenderer answers page routes with their context as JSON. Used for
// headless deployments and tests.
type JSONRenderer struct{}

func (JSONRenderer) Render(w http.ResponseWriter, status int, page string, data map[string]interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"page": page,
		"data": data,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error.Printf("Failed to encode response: %v", err)
	}
}
