package handlers

import (
	"net/http"

	"github.com/warmline/warmline/pkg/core"
	"github.com/warmline/warmline/pkg/gateway/mw"
)

// NotFoundHandler answers unrouted paths with the canonical error envelope
// instead of the default plain-text body.
type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	writeCoreErrorJSON(w, reqID, core.NewNotFoundError("not found"), http.StatusNotFound)
}
