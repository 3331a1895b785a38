package catalog

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"packtrack/frontend/shared/respond"
	"packtrack/infrastructure/audit"
	catalogsvc "packtrack/infrastructure/catalog"
	"packtrack/infrastructure/sqlite"
)

type AddPackerRequest struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Actor string `json:"actor"`
}

func PackersQueryHandler(svc *catalogsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		packers, err := svc.Packers(r.Context(), r.URL.Query().Get("role"))
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, packers)
	}
}

func AddPackerCommandHandler(svc *catalogsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddPackerRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.BadRequest(w, r, "invalid packer")
			return
		}
		packer, err := svc.AddPacker(r.Context(), req.Name, req.Role, req.Actor)
		if err != nil {
			if errors.Is(err, catalogsvc.ErrInvalidName) {
				respond.Error(w, r, http.StatusUnprocessableEntity, "invalid_request", err.Error())
				return
			}
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusCreated, packer)
	}
}

func ReportReasonsQueryHandler(svc *catalogsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reasons, err := svc.ReportReasons(r.Context())
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, reasons)
	}
}

func LabelsQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := ListLabels(r.Context(), db, limit)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, rows)
	}
}

func LabelQueryHandler(svc *catalogsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(chi.URLParam(r, "code"))
		label, found, err := svc.Label(r.Context(), code)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		if !found {
			respond.Error(w, r, http.StatusNotFound, "not_found", "code "+code+" was not found in the printed labels")
			return
		}
		respond.JSON(w, r, http.StatusOK, label)
	}
}

// LabelImportCommandHandler accepts a CSV either as a multipart "file" field
// or as the raw request body.
func LabelImportCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var src io.Reader = r.Body
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(10 << 20); err != nil {
				respond.BadRequest(w, r, "invalid upload")
				return
			}
			file, _, err := r.FormFile("file")
			if err != nil {
				respond.BadRequest(w, r, "file is required")
				return
			}
			defer file.Close()
			src = file
		}

		actor := strings.TrimSpace(r.Header.Get("X-Encargado"))
		summary, err := ImportLabelsCSV(r.Context(), db, auditSvc, actor, src)
		if err != nil {
			if strings.Contains(err.Error(), "header") {
				respond.Error(w, r, http.StatusUnprocessableEntity, "invalid_csv", err.Error())
				return
			}
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, summary)
	}
}
