// Package swagger serves the OpenAPI document and a ReDoc viewer for it.
package swagger

import (
	"context"
	_ "embed"
	"net/http"
)

// OpenAPI contains the embedded OpenAPI YAML specification.
//
//go:embed openapi.yaml
var OpenAPI []byte

// redocCDN is used when no local ReDoc bundle is configured.
const redocCDN = "https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"

// Option configures Register.
type Option func(*options)

type options struct {
	redocFile string
}

// WithRedocFile serves the ReDoc bundle from a local file so the docs page
// works without outbound network access.
func WithRedocFile(path string) Option {
	return func(o *options) { o.redocFile = path }
}

// Register attaches the docs routes to mux.
//
//	GET /api-docs                     -> ReDoc HTML
//	GET /openapi.yaml                 -> embedded OpenAPI document
//	GET /api-docs/redoc.standalone.js -> local ReDoc bundle, or a redirect to the CDN
func Register(_ context.Context, mux *http.ServeMux, opts ...Option) {
	if mux == nil {
		panic("mux is nil")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	mux.HandleFunc("/api-docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})

	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})

	mux.HandleFunc("/api-docs/redoc.standalone.js", func(w http.ResponseWriter, r *http.Request) {
		if o.redocFile == "" {
			http.Redirect(w, r, redocCDN, http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		http.ServeFile(w, r, o.redocFile)
	})
}

const indexHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>whodle API</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container" spec-url="/openapi.yaml"></redoc>
    <script src="/api-docs/redoc.standalone.js"></script>
  </body>
</html>`
