package labels

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"packtrack/frontend/shared/respond"
	"packtrack/infrastructure/lifecycle"
	"packtrack/infrastructure/scansession"
)

// PackageLabelPDFHandler renders a printable label for a package. Unassigned
// codes fall back to the printed-label catalog.
func PackageLabelPDFHandler(machine *lifecycle.Machine, catalog scansession.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			respond.BadRequest(w, r, "a code is required")
			return
		}

		st, rec, err := machine.Status(r.Context(), code)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		var data PackageLabelData
		if st == lifecycle.StatusUnassigned {
			label, found, err := catalog.Label(r.Context(), code)
			if err != nil {
				respond.Err(w, r, err)
				return
			}
			if !found {
				respond.Error(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("code %s is neither assigned nor printed", code))
				return
			}
			data = PackageLabelData{
				Code:          code,
				Product:       label.Product,
				SKU:           label.SKU,
				Quantity:      label.Quantity,
				Organization:  label.Organization,
				SaleReference: label.SaleReference,
				Status:        string(st),
			}
		} else {
			data = PackageLabelData{
				Code:          rec.Code,
				Product:       rec.Product,
				SKU:           rec.SKU,
				Quantity:      rec.Quantity,
				Organization:  rec.Organization,
				SaleReference: rec.SaleReference,
				Packer:        rec.AssignedTo,
				Status:        string(st),
			}
		}

		pdf, err := renderPackageLabelPDF(data, time.Now())
		if err != nil {
			http.Error(w, "failed to render label", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `inline; filename="label-`+code+`.pdf"`)
		_, _ = w.Write(pdf)
	}
}
