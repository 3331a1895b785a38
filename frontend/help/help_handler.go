package help

import (
	"net/http"

	"packtrack/infrastructure/config"
)

func HelpPageQueryHandler(scanCfg config.Scan) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := HelpPage(BuildPageData(scanCfg)).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render help page", http.StatusInternalServerError)
			return
		}
	}
}
