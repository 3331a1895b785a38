package packages

import (
	"net/http"
	"strings"

	"packtrack/frontend/shared/respond"
	"packtrack/infrastructure/lifecycle"
)

// ProgressQueryHandler renders the packer progress board, as JSON unless the
// client asks for HTML.
func ProgressQueryHandler(machine *lifecycle.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress, err := machine.Progress(r.Context())
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		if r.URL.Query().Get("view") == "html" || strings.Contains(r.Header.Get("Accept"), "text/html") {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if err := ProgressPage(progress).Render(r.Context(), w); err != nil {
				http.Error(w, "failed to render progress page", http.StatusInternalServerError)
			}
			return
		}
		respond.JSON(w, r, http.StatusOK, progress)
	}
}
