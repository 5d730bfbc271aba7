// Package httpmw builds the HTTP middleware chain wrapping the admission
// mux: request logging then panic recovery, ahead of the routed handler.
package httpmw

import (
	"net/http"

	"github.com/urfave/negroni/v3"
)

// New wraps handler with the standard negroni chain used across the
// coordinator's HTTP surface.
func New(handler http.Handler) http.Handler {
	n := negroni.New()
	n.Use(negroni.NewLogger())
	n.Use(negroni.NewRecovery())
	n.UseHandler(handler)
	return n
}
