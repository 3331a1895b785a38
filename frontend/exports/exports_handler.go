package exports

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	sessioncontext "packtrack/frontend/shared/context"
	"packtrack/frontend/shared/respond"
	"packtrack/infrastructure/scansession"
	"packtrack/infrastructure/sqlite"
)

// SessionExportCSVHandler downloads the session list and marks it exported.
func SessionExportCSVHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessioncontext.GetScanSessionFromContext(r.Context())
		if !ok {
			respond.Error(w, r, http.StatusNotFound, "not_found", "scan session not found")
			return
		}
		exp, err := sess.Export()
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		var buf bytes.Buffer
		if err := WriteSessionCSV(&buf, exp); err != nil {
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+FileName(exp)+`"`)
		if _, err := w.Write(buf.Bytes()); err != nil {
			slog.Error("write csv export failed", slog.String("session_id", sess.ID()), slog.Any("err", err))
		}
	}
}

// RecordCommandHandler stores the exported list in the scan log.
func RecordCommandHandler(rec scansession.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessioncontext.GetScanSessionFromContext(r.Context())
		if !ok {
			respond.Error(w, r, http.StatusNotFound, "not_found", "scan session not found")
			return
		}
		count := len(sess.Snapshot().Pending)
		if err := sess.Record(r.Context(), rec); err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, map[string]int{"recorded": count})
	}
}

func ScanLogsQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := ListScanLogs(r.Context(), db, limit)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, rows)
	}
}
