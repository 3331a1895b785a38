package packages

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"packtrack/frontend/scan"
	"packtrack/frontend/shared/respond"
	"packtrack/infrastructure/lifecycle"
	"packtrack/models"
)

// ActorHeader names the encargado when the body does not.
const ActorHeader = "X-Encargado"

func PackageQueryHandler(machine *lifecycle.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := codeParam(r)
		st, rec, err := machine.Status(r.Context(), code)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		view := PackageView{Code: code, Status: st}
		if st != lifecycle.StatusUnassigned {
			view.Record = &rec
			view.ReportDetails = rec.Report()
		}
		respond.JSON(w, r, http.StatusOK, view)
	}
}

func AssignCommandHandler(machine *lifecycle.Machine) http.HandlerFunc {
	return transition(func(r *http.Request, code string, req TransitionRequest) (models.PackageRecord, error) {
		return machine.Assign(r.Context(), lifecycle.Assignment{Code: code, Packer: req.Packer}, req.Actor)
	})
}

func QualifyCommandHandler(machine *lifecycle.Machine) http.HandlerFunc {
	return transition(func(r *http.Request, code string, req TransitionRequest) (models.PackageRecord, error) {
		return machine.Qualify(r.Context(), code, req.Actor)
	})
}

func ReportCommandHandler(machine *lifecycle.Machine) http.HandlerFunc {
	return transition(func(r *http.Request, code string, req TransitionRequest) (models.PackageRecord, error) {
		return machine.Report(r.Context(), code, req.Reason, req.Actor)
	})
}

func DeliverCommandHandler(machine *lifecycle.Machine) http.HandlerFunc {
	return transition(func(r *http.Request, code string, req TransitionRequest) (models.PackageRecord, error) {
		return machine.Deliver(r.Context(), code, req.Actor)
	})
}

func BatchQualifyCommandHandler(machine *lifecycle.Machine) http.HandlerFunc {
	return batch(machine.QualifyBatch)
}

func BatchDeliverCommandHandler(machine *lifecycle.Machine) http.HandlerFunc {
	return batch(machine.DeliverBatch)
}

type transitionFunc func(r *http.Request, code string, req TransitionRequest) (models.PackageRecord, error)

func transition(apply transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TransitionRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.BadRequest(w, r, "invalid transition request")
			return
		}
		req.Actor = actor(r, req.Actor)
		rec, err := apply(r, codeParam(r), req)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, PackageView{
			Code:          rec.Code,
			Status:        lifecycle.Status(rec.Status),
			ReportDetails: rec.Report(),
			Record:        &rec,
		})
	}
}

type batchFunc func(ctx context.Context, codes []string, actor string) (lifecycle.BatchResult, error)

// batch applies a bulk transition. Codes in the wrong state are reported
// per code; a store failure aborts the whole batch.
func batch(apply batchFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.BadRequest(w, r, "invalid batch request")
			return
		}
		if len(req.Codes) == 0 {
			respond.BadRequest(w, r, "codes are required")
			return
		}
		res, err := apply(r.Context(), req.Codes, actor(r, req.Actor))
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, scan.NewCommitResponse(res))
	}
}

func codeParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "code"))
}

func actor(r *http.Request, fromBody string) string {
	if a := strings.TrimSpace(fromBody); a != "" {
		return a
	}
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}
