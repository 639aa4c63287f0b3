package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="docs" data-spec="{{.SpecURL}}"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
SwaggerUIBundle({url: document.getElementById("docs").dataset.spec, dom_id: "#docs", docExpansion: "list", filter: true});
</script>
</body>
</html>`))

// DocsHandler serves the embedded OpenAPI document and a browser view of it
type DocsHandler struct {
	page     []byte
	specYAML []byte
	specJSON []byte
}

// NewDocsHandler converts spec to JSON and renders the browser page once.
// It fails when spec is not valid YAML.
func NewDocsHandler(title string, spec []byte) (*DocsHandler, error) {
	var doc any
	if err := yaml.Unmarshal(spec, &doc); err != nil {
		return nil, fmt.Errorf("parsing openapi document: %w", err)
	}
	specJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("converting openapi document: %w", err)
	}

	var page bytes.Buffer
	err = docsPage.Execute(&page, struct{ Title, SpecURL string }{title, "/docs/openapi.json"})
	if err != nil {
		return nil, fmt.Errorf("rendering docs page: %w", err)
	}

	return &DocsHandler{page: page.Bytes(), specYAML: spec, specJSON: specJSON}, nil
}

// RegisterRoutes registers documentation routes
func (h *DocsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/docs", h.serve("text/html; charset=utf-8", h.page))
	r.Get("/docs/openapi.yaml", h.serve("application/yaml", h.specYAML))
	r.Get("/docs/openapi.json", h.serve("application/json", h.specJSON))
}

func (h *DocsHandler) serve(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(body)
	}
}
