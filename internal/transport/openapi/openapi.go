package openapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Document is the parsed and validated API description served at
// /openapi.yml and read by the Swagger UI.
type Document struct {
	raw []byte
	doc *openapi3.T
}

// Load reads the document from disk and rejects it unless it validates.
func Load(ctx context.Context, path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read openapi document: %w", err)
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}

	return &Document{raw: raw, doc: doc}, nil
}

func (d *Document) Version() string {
	if d.doc.Info == nil {
		return ""
	}
	return d.doc.Info.Version
}

// HasOperation reports whether the document describes method on path.
// Path parameter names need not match.
func (d *Document) HasOperation(method, path string) bool {
	if d.doc.Paths == nil {
		return false
	}
	item := d.doc.Paths.Find(path)
	if item == nil {
		return false
	}
	return item.GetOperation(strings.ToUpper(method)) != nil
}

func (d *Document) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(d.raw)
	})
}
