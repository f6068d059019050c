package wizard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stitchline-erp/stitchline-erp/internal/platform/httpx"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

// Handler serves the wizard endpoints. All state is keyed by the
// operator's session; each draft additionally carries its own id for
// guards that must not outlive it.
type Handler struct {
	logger       *slog.Logger
	store        SessionStore
	registry     *Registry
	resolver     *Resolver
	orchestrator *Orchestrator
}

// NewHandler builds the wizard handler.
func NewHandler(logger *slog.Logger, store SessionStore, registry *Registry, resolver *Resolver, orchestrator *Orchestrator) *Handler {
	return &Handler{
		logger:       logger,
		store:        store,
		registry:     registry,
		resolver:     resolver,
		orchestrator: orchestrator,
	}
}

// MountRoutes registers wizard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/wizard", h.state)
	r.Post("/wizard", h.start)
	r.Delete("/wizard", h.discard)
	r.Put("/wizard/steps/{step}", h.setStep)
	r.Post("/wizard/navigate", h.navigate)
	r.Post("/wizard/autofill", h.autofill)
	r.Post("/wizard/submit", h.submit)
}

func (h *Handler) sessionID(r *http.Request) string {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.ID
	}
	return ""
}

// load fetches the operator's wizard session, optionally creating it.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, create bool) (*Session, bool) {
	id := h.sessionID(r)
	if id == "" {
		httpx.Problem(w, http.StatusUnauthorized, "No Session", "a session is required to use the wizard")
		return nil, false
	}
	sess, err := h.store.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) && create {
			return NewSession(id, h.registry), true
		}
		if errors.Is(err, ErrSessionNotFound) {
			httpx.Problem(w, http.StatusNotFound, "No Draft", "start the wizard before editing steps")
			return nil, false
		}
		h.logger.Error("load wizard session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, sess *Session) bool {
	if err := h.store.Save(r.Context(), sess); err != nil {
		h.logger.Error("save wizard session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return false
	}
	return true
}

// start creates (or resets) the operator's draft.
func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	id := h.sessionID(r)
	if id == "" {
		httpx.Problem(w, http.StatusUnauthorized, "No Session", "a session is required to use the wizard")
		return
	}
	sess := NewSession(id, h.registry)
	if !h.save(w, r, sess) {
		return
	}
	httpx.JSON(w, http.StatusCreated, NewStateView(sess))
}

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r, true)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, NewStateView(sess))
}

func (h *Handler) discard(w http.ResponseWriter, r *http.Request) {
	id := h.sessionID(r)
	if id == "" {
		httpx.Problem(w, http.StatusUnauthorized, "No Session", "a session is required to use the wizard")
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.logger.Error("discard wizard session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// setStep replaces one step's slice of the draft and returns the step's
// validation result with the refreshed state.
func (h *Handler) setStep(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r, true)
	if !ok {
		return
	}
	step := StepKey(chi.URLParam(r, "step"))
	result, err := h.applyStep(sess, step, r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Step Payload", err.Error())
		return
	}
	if !h.save(w, r, sess) {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"result": result, "state": NewStateView(sess)})
}

func (h *Handler) applyStep(sess *Session, step StepKey, r *http.Request) (StepResult, error) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	switch step {
	case StepOrderSelection:
		var v OrderSelection
		if err := dec.Decode(&v); err != nil {
			return StepResult{}, err
		}
		return sess.SetOrderSelection(v), nil
	case StepOrderDetails:
		var v OrderDetails
		if err := dec.Decode(&v); err != nil {
			return StepResult{}, err
		}
		return sess.SetOrderDetails(v), nil
	case StepScheduling:
		var v Scheduling
		if err := dec.Decode(&v); err != nil {
			return StepResult{}, err
		}
		return sess.SetScheduling(v), nil
	case StepMaterials:
		var v Materials
		if err := dec.Decode(&v); err != nil {
			return StepResult{}, err
		}
		return sess.SetMaterials(v), nil
	case StepQuality:
		var v Quality
		if err := dec.Decode(&v); err != nil {
			return StepResult{}, err
		}
		return sess.SetQuality(v), nil
	case StepTeam:
		var v Team
		if err := dec.Decode(&v); err != nil {
			return StepResult{}, err
		}
		return sess.SetTeam(v), nil
	case StepCustomization:
		var v Customization
		if err := dec.Decode(&v); err != nil {
			return StepResult{}, err
		}
		return sess.SetCustomization(v), nil
	case StepReview:
		var v Review
		if err := dec.Decode(&v); err != nil {
			return StepResult{}, err
		}
		return sess.SetReview(v), nil
	default:
		return StepResult{}, errors.New("unknown step key " + string(step))
	}
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r, false)
	if !ok {
		return
	}
	var req NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	switch req.Action {
	case "next":
		sess.Next()
	case "previous":
		sess.Previous()
	case "jump":
		if err := sess.JumpTo(req.Step); err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Step Not Reachable", err.Error())
			return
		}
	default:
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "action must be next, previous or jump")
		return
	}
	if !h.save(w, r, sess) {
		return
	}
	httpx.JSON(w, http.StatusOK, NewStateView(sess))
}

// autofill resolves an approval record into the draft. Resolution
// failures surface as a transient notice; the draft is unchanged.
func (h *Handler) autofill(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r, true)
	if !ok {
		return
	}
	var req AutofillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	result, err := h.resolver.Populate(r.Context(), sess, req.ApprovalID)
	if err != nil {
		h.logger.Warn("auto-population failed", slog.Int64("approval_id", req.ApprovalID), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Auto-Population Failed", err.Error())
		return
	}
	if !h.save(w, r, sess) {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"resolution": result, "state": NewStateView(sess)})
}

// submit runs the orchestration and, once the order exists, discards
// the draft regardless of how much best-effort work succeeded.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r, false)
	if !ok {
		return
	}
	result, err := h.orchestrator.Submit(r.Context(), sess)
	if err != nil {
		switch {
		case errors.Is(err, ErrDraftNotReady):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Draft Not Ready", err.Error())
		case errors.Is(err, ErrSubmissionInFlight):
			httpx.Problem(w, http.StatusConflict, "Submission In Flight", err.Error())
		case errors.Is(err, ErrSubmissionFailed):
			h.logger.Error("order creation failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Submission Failed", err.Error())
		default:
			h.logger.Error("wizard submit", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	if err := h.store.Delete(r.Context(), sess.ID); err != nil {
		h.logger.Warn("discard draft after submit", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusCreated, result)
}
