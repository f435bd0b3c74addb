package shop

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFS embed.FS

const templatesDir = "templates"

// Renderer executes page templates, each combined with base.html.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
	mu        sync.RWMutex
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	return newRenderer(templateFS, templatesDir)
}

func newRenderer(fsys fs.FS, dir string) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap:   createFuncMap(),
	}
	if err := r.parseTemplates(fsys, dir); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return r, nil
}

// Render executes the named page template and writes it with status.
// Nothing is written if execution fails.
func (r *Renderer) Render(w http.ResponseWriter, status int, templateName string, data any) error {
	r.mu.RLock()
	tmpl, ok := r.templates[templateName]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("template %q not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", templateName, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderError renders the error page, falling back to plain text.
func (r *Renderer) RenderError(w http.ResponseWriter, code int, message string) {
	data := errorData{PageData: PageData{Title: "Automation Exercise - Error"}, Code: code, Message: message}
	if err := r.Render(w, code, "error.html", data); err == nil {
		return
	}
	http.Error(w, fmt.Sprintf("Error %d: %s", code, message), code)
}

func (r *Renderer) parseTemplates(fsys fs.FS, dir string) error {
	baseContent, err := fs.ReadFile(fsys, path.Join(dir, "base.html"))
	if err != nil {
		return fmt.Errorf("failed to read base template: %w", err)
	}

	err = fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".html") || path.Base(p) == "base.html" {
			return nil
		}
		name := strings.TrimPrefix(p, dir+"/")

		pageContent, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New("base").Funcs(r.funcMap).Parse(string(baseContent))
		if err != nil {
			return fmt.Errorf("failed to parse base template for %s: %w", name, err)
		}
		if tmpl, err = tmpl.Parse(string(pageContent)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		r.mu.Lock()
		r.templates[name] = tmpl
		r.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	if len(r.templates) == 0 {
		return fmt.Errorf("no templates found in %s", dir)
	}
	return nil
}

func createFuncMap() template.FuncMap {
	return template.FuncMap{
		"markdown": renderMarkdown,
		"add":      add,
	}
}

// renderMarkdown converts product copy to sanitized HTML.
func renderMarkdown(s string) template.HTML {
	extensions := parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	doc := parser.NewWithExtensions(extensions).Parse([]byte(s))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	htmlContent := markdown.Render(doc, renderer)

	return template.HTML(bluemonday.UGCPolicy().SanitizeBytes(htmlContent))
}

// add returns the sum of two integers.
func add(a, b int) int {
	return a + b
}
