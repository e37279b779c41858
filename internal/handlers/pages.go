package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/Masterminds/sprig/v3"

	"github.com/aigoflow/catdog-classifier/internal/classifier"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageHandler renders the browser pages. The pages call the JSON API from
// the browser; they hold no server-side state.
type PageHandler struct {
	templates  *template.Template
	classifier classifier.Classifier
	version    string
}

func NewPageHandler(c classifier.Classifier, version string) (*PageHandler, error) {
	tmpl, err := template.New("pages").Funcs(sprig.FuncMap()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{templates: tmpl, classifier: c, version: version}, nil
}

func (h *PageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.page("index.html"))
	mux.HandleFunc("/info", h.page("info.html"))
	mux.HandleFunc("/inference", h.page("inference.html"))
}

type pageData struct {
	Title   string
	Version string
	Model   classifier.ModelInfo
}

func (h *PageHandler) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// "/" is the mux catch-all.
		if name == "index.html" && r.URL.Path != "/" {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusMethodNotAllowed, "GET only")
			return
		}

		data := pageData{
			Title:   "Classification Chat / Chien",
			Version: h.version,
			Model:   h.classifier.Info(),
		}

		var buf bytes.Buffer
		if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
			slog.Error("Failed to render page", "template", name, "error", err)
			http.Error(w, "template error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = buf.WriteTo(w)
	}
}
