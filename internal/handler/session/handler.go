// Package session exposes the session lifecycle endpoints.
package session

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alyahmadi/sakina/backend/internal/model/therapy"
	"github.com/alyahmadi/sakina/backend/pkg/utils"
)

// Dispatcher schedules the post-session insight update.
type Dispatcher interface {
	Enqueue(sessionID, userID string) bool
}

// Handler serves session creation and session end.
type Handler struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

// New creates the session handler.
func New(dispatcher Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, logger: logger}
}

// RegisterRoutes mounts the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Post("/session/{sessionID}/end", h.handleEndSession)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := therapy.Session{
		ID:          uuid.NewString(),
		ConsentText: therapy.ConsentText(),
		CreatedAt:   time.Now().UTC(),
	}

	h.logger.Info("session created", zap.String("session", session.ID))
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionID is required")
		return
	}

	if !h.dispatcher.Enqueue(sessionID, therapy.DefaultUserID) {
		utils.RespondError(w, http.StatusServiceUnavailable, "insight update queue is full")
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
