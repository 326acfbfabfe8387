// Package site serves the embedded zkPresence web card.
package site

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the web card routes to r.
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}

	root := NewRootHandler()
	r.Get("/", root.HandleRoot)
}

// RootHandler serves the embedded page.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.FileServer(FS())}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(w, r)
}
