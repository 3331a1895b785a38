package scan

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	sessioncontext "packtrack/frontend/shared/context"
	"packtrack/frontend/shared/respond"
	"packtrack/infrastructure/cache"
	"packtrack/infrastructure/config"
	"packtrack/infrastructure/lifecycle"
	"packtrack/infrastructure/scancode"
	"packtrack/infrastructure/scansession"
)

// StopTimeout bounds how long a stop request waits for the camera decoder.
var StopTimeout = 5 * time.Second

// CreateSessionCommandHandler opens a scan session for one workflow.
func CreateSessionCommandHandler(sessions *cache.ScanSessionCache, machine *lifecycle.Machine, catalog scansession.Catalog, scanCfg config.Scan) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.BadRequest(w, r, "invalid session request")
			return
		}
		workflow, err := scansession.ParseWorkflow(req.Workflow)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		mode, err := scansession.ParseMode(req.Mode)
		if err != nil {
			respond.BadRequest(w, r, err.Error())
			return
		}
		area := strings.TrimSpace(req.Area)
		if area == "" {
			area = scanCfg.Area
		}

		sess, err := scansession.New(scansession.Config{
			Workflow:       workflow,
			Mode:           mode,
			MinInterval:    scanCfg.Interval(string(workflow)),
			FlushDelay:     scanCfg.FlushDelay(),
			ConfirmTimeout: scanCfg.ConfirmTimeout(),
			Area:           area,
		}, machine, catalog)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		if strings.TrimSpace(req.Encargado) != "" {
			if err := sess.SetOperator(req.Encargado); err != nil {
				respond.Err(w, r, err)
				return
			}
		}
		sessions.Add(sess)
		slog.Info("scan session created", slog.String("session_id", sess.ID()), slog.String("workflow", string(workflow)))
		respond.JSON(w, r, http.StatusCreated, sess.Snapshot())
	}
}

func ListSessionsQueryHandler(sessions *cache.ScanSessionCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := sessions.All()
		out := make([]scansession.Snapshot, 0, len(all))
		for _, s := range all {
			out = append(out, s.Snapshot())
		}
		respond.JSON(w, r, http.StatusOK, out)
	}
}

// SessionQueryHandler returns the session snapshot, as HTML when the client
// asks for it.
func SessionQueryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		snap := sess.Snapshot()
		if wantsHTML(r) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if err := SessionPage(snap).Render(r.Context(), w); err != nil {
				http.Error(w, "failed to render session page", http.StatusInternalServerError)
			}
			return
		}
		respond.JSON(w, r, http.StatusOK, snap)
	}
}

// DeleteSessionCommandHandler closes the session, declining any pending
// confirmation.
func DeleteSessionCommandHandler(sessions *cache.ScanSessionCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessions.Remove(chi.URLParam(r, "sessionID"))
		if !ok {
			respond.Error(w, r, http.StatusNotFound, "not_found", "scan session not found")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), StopTimeout)
		defer cancel()
		if err := sess.Close(ctx); err != nil {
			slog.Warn("close scan session", slog.String("session_id", sess.ID()), slog.Any("err", err))
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func StartCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		var req StartRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.BadRequest(w, r, "invalid start request")
			return
		}
		ch, err := scancode.ParseChannel(req.Channel)
		if err != nil {
			respond.BadRequest(w, r, err.Error())
			return
		}
		operator := req.Encargado
		if strings.TrimSpace(operator) == "" {
			operator = sess.Operator()
		}
		if req.DecoderStopped {
			sess.AckDecoder()
		}
		ctx, cancel := context.WithTimeout(r.Context(), StopTimeout)
		defer cancel()
		if err := sess.Start(ctx, ch, operator); err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, sess.Snapshot())
	}
}

func StopCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		var req StopRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.BadRequest(w, r, "invalid stop request")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), StopTimeout)
		defer cancel()
		if err := sess.Stop(ctx, req.DecoderStopped); err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, sess.Snapshot())
	}
}

// DecodeCommandHandler accepts one camera decode result. The response is the
// final outcome, or 202 with the confirmation when the scan waits for the
// operator.
func DecodeCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		var req DecodeRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.BadRequest(w, r, "invalid decode event")
			return
		}
		ev := scancode.Event{
			RawText:    req.Text,
			Channel:    scancode.ChannelCamera,
			Format:     scancode.ParseFormat(req.Format),
			ObservedAt: time.Now(),
		}
		out := sess.Submit(r.Context(), func(ctx context.Context) scansession.Outcome {
			return sess.Process(ctx, ev)
		})
		writeOutcome(w, r, out)
	}
}

// KeysCommandHandler feeds physical-scanner keystrokes in order. Processing
// stops at the first scan that needs confirmation.
func KeysCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		var req KeysRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.BadRequest(w, r, "invalid keystrokes")
			return
		}

		resp := KeysResponse{Outcomes: []scansession.Outcome{}}
		for _, key := range req.Keys {
			keyErr := make(chan error, 1)
			out := sess.Submit(r.Context(), func(ctx context.Context) scansession.Outcome {
				o, done, err := sess.Key(ctx, key)
				if err != nil {
					keyErr <- err
				}
				if err != nil || !done {
					return scansession.Outcome{}
				}
				return o
			})
			select {
			case err := <-keyErr:
				respond.Err(w, r, err)
				return
			default:
			}
			if out.Kind == "" {
				continue
			}
			resp.Outcomes = append(resp.Outcomes, out)
			if out.Kind == scansession.OutcomePendingConfirmation {
				resp.Pending = true
				break
			}
		}

		status := http.StatusOK
		if resp.Pending {
			status = http.StatusAccepted
		}
		respond.JSON(w, r, status, resp)
	}
}

// ManualCommandHandler adds a hand-typed code.
func ManualCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		var req ManualRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.BadRequest(w, r, "invalid manual entry")
			return
		}
		if strings.TrimSpace(req.Code) == "" {
			respond.BadRequest(w, r, "a code is required")
			return
		}
		if sess.Operator() == "" {
			respond.Err(w, r, scansession.ErrNoOperator)
			return
		}
		out := sess.Submit(r.Context(), func(ctx context.Context) scansession.Outcome {
			o, err := sess.AddManual(ctx, req.Code)
			if err != nil {
				return scansession.Outcome{Kind: scansession.OutcomeDropped, Code: req.Code, Reason: err.Error(), Err: err}
			}
			return o
		})
		writeOutcome(w, r, out)
	}
}

func ConfirmationQueryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		req, pending := sess.Gate().Pending()
		if !pending {
			respond.Error(w, r, http.StatusNotFound, "no_confirmation", "no confirmation is pending")
			return
		}
		respond.JSON(w, r, http.StatusOK, req)
	}
}

// ResolveConfirmationCommandHandler answers the pending confirmation and
// returns the outcome of the scan that was waiting on it.
func ResolveConfirmationCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		var req ResolveRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.BadRequest(w, r, "invalid confirmation answer")
			return
		}
		out, err := sess.Resolve(r.Context(), req.Confirmed)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		writeOutcome(w, r, out)
	}
}

func RemoveItemCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		if !sess.Remove(chi.URLParam(r, "code")) {
			respond.Error(w, r, http.StatusNotFound, "not_found", "code is not in the list")
			return
		}
		respond.JSON(w, r, http.StatusOK, sess.Snapshot())
	}
}

func ClearCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		sess.Clear()
		respond.JSON(w, r, http.StatusOK, sess.Snapshot())
	}
}

func ModeCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		var req ModeRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.BadRequest(w, r, "invalid mode request")
			return
		}
		mode, err := scansession.ParseMode(req.Mode)
		if err != nil {
			respond.BadRequest(w, r, err.Error())
			return
		}
		if err := sess.SwitchMode(mode); err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, sess.Snapshot())
	}
}

func AssociateCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		var req AssociateRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.BadRequest(w, r, "invalid associate request")
			return
		}
		out, err := sess.Associate(req.Packer)
		if err != nil {
			if errors.Is(err, scansession.ErrWrongWorkflow) {
				respond.Err(w, r, err)
				return
			}
			respond.BadRequest(w, r, err.Error())
			return
		}
		writeOutcome(w, r, out)
	}
}

// CommitCommandHandler applies the session's batch transition.
func CommitCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(w, r)
		if !ok {
			return
		}
		res, err := sess.Commit(r.Context())
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, NewCommitResponse(res))
	}
}

func sessionFromRequest(w http.ResponseWriter, r *http.Request) (*scansession.Session, bool) {
	sess, ok := sessioncontext.GetScanSessionFromContext(r.Context())
	if !ok {
		respond.Error(w, r, http.StatusNotFound, "not_found", "scan session not found")
		return nil, false
	}
	return sess, true
}

func writeOutcome(w http.ResponseWriter, r *http.Request, out scansession.Outcome) {
	respond.JSON(w, r, respond.OutcomeStatus(out), out)
}

func wantsHTML(r *http.Request) bool {
	return r.URL.Query().Get("view") == "html" || strings.Contains(r.Header.Get("Accept"), "text/html")
}
