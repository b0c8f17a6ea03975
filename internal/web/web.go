// Package web holds the embedded page templates and static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/sharetaxi/sharetaxi/internal/format"
	"github.com/sharetaxi/sharetaxi/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page names.
const (
	PageLogin     = "login"
	PageVerify    = "verify"
	PageChatList  = "chat_list"
	PageChat      = "chat"
	PageProfile   = "profile"
	PageSettings  = "settings"
	PageAnalytics = "analytics"
	PageError     = "error"
)

var pageNames = []string{
	PageLogin,
	PageVerify,
	PageChatList,
	PageChat,
	PageProfile,
	PageSettings,
	PageAnalytics,
	PageError,
}

// Page is the data every template receives. Data holds the page-specific
// view model.
type Page struct {
	Title   string
	Session *model.Session
	Error   string
	Notice  string
	Data    any
}

// Renderer executes the page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page together with the shared layout.
func NewRenderer() (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").
			Funcs(Funcs()).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render executes page into w. Output is buffered so a template error
// never leaves a half-written response.
func (r *Renderer) Render(w io.Writer, page string, data *Page) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Funcs returns the template helpers backed by package format.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"formatDate":     formatDate,
		"formatCurrency": formatCurrency,
		"formatPhone":    format.PhoneNumber,
		"initials":       format.Initials,
	}
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return format.Date(t)
	case *time.Time:
		if t == nil {
			return ""
		}
		return format.Date(*t)
	default:
		return ""
	}
}

func formatCurrency(v any) string {
	switch n := v.(type) {
	case int:
		return format.Currency(float64(n))
	case int64:
		return format.Currency(float64(n))
	case float64:
		return format.Currency(n)
	default:
		return ""
	}
}

// Static serves the embedded assets; mount it under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
