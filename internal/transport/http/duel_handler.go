package http

import (
	"log/slog"
	"net/http"

	"battle-arena/internal/app"
	"battle-arena/internal/domain"
	"github.com/go-chi/chi/v5"
)

// DuelHandler exposes the coordinator over JSON. The acting account is
// passed explicitly; authenticating it is the gateway's job.
type DuelHandler struct {
	service *app.DuelService
	logger  *slog.Logger
}

func NewDuelHandler(service *app.DuelService, logger *slog.Logger) *DuelHandler {
	return &DuelHandler{service: service, logger: logger}
}

type createRequest struct {
	ChallengerID string `json:"challengerId"`
	OpponentID   string `json:"opponentId"`
	SubjectID    string `json:"subjectId"`
}

type actorRequest struct {
	AccountID string `json:"accountId"`
}

type submitRequest struct {
	AccountID string          `json:"accountId"`
	Answers   []domain.Answer `json:"answers"`
}

func (h *DuelHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := h.service.Create(r.Context(), req.ChallengerID, req.OpponentID, req.SubjectID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *DuelHandler) get(w http.ResponseWriter, r *http.Request) {
	duel, err := h.service.Get(r.Context(), chi.URLParam(r, "duelID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, duel)
}

func (h *DuelHandler) accept(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	duel, err := h.service.Accept(r.Context(), chi.URLParam(r, "duelID"), req.AccountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, duel)
}

func (h *DuelHandler) decline(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.Decline(r.Context(), chi.URLParam(r, "duelID"), req.AccountID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *DuelHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.service.SubmitAnswers(r.Context(), chi.URLParam(r, "duelID"), req.AccountID, req.Answers)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *DuelHandler) questions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.Questions(r.Context(), chi.URLParam(r, "duelID"), r.URL.Query().Get("accountId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *DuelHandler) list(w http.ResponseWriter, r *http.Request) {
	duels, err := h.service.List(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, duels)
}

func (h *DuelHandler) pendingCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.PendingCount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": n})
}

func (h *DuelHandler) opponents(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.Opponents(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *DuelHandler) subjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.Subjects(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *DuelHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("duel request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}
