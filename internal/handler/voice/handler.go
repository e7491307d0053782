// Package voice serves the chat turn upload and reply audio download.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/alyahmadi/sakina/backend/internal/audio"
	"github.com/alyahmadi/sakina/backend/internal/service/turn"
	"github.com/alyahmadi/sakina/backend/pkg/utils"
)

// TurnProcessor runs one full voice exchange.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID string, audio []byte) (*turn.Result, error)
}

// AudioFinder resolves stored reply audio for serving.
type AudioFinder interface {
	ReplyPath(sessionID, stamp string) (string, bool)
}

// Handler serves the voice turn endpoints.
type Handler struct {
	processor TurnProcessor
	finder    AudioFinder
	logger    *zap.Logger
}

// New creates the voice handler.
func New(processor TurnProcessor, finder AudioFinder, logger *zap.Logger) *Handler {
	return &Handler{processor: processor, finder: finder, logger: logger}
}

// RegisterRoutes mounts the voice routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/audio/{sessionID}/{stamp}", h.handleAudio)
}

type chatResponse struct {
	Transcript  string `json:"transcript"`
	Emotion     string `json:"emotion"`
	CrisisFlag  bool   `json:"crisisFlag"`
	Reply       string `json:"reply"`
	BotAudioURL string `json:"botAudioUrl"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(audio.MaxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	sessionID := r.FormValue("sessionId")
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	if contentType := header.Header.Get("Content-Type"); !isWAVContentType(contentType) {
		utils.RespondError(w, http.StatusUnsupportedMediaType, "audio must be wav")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, audio.MaxUploadBytes+1))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	if err := audio.ValidateWAV(data); err != nil {
		switch {
		case errors.Is(err, audio.ErrTooLarge):
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "audio exceeds the size limit")
		default:
			utils.RespondError(w, http.StatusUnsupportedMediaType, "audio must be wav")
		}
		return
	}

	result, err := h.processor.ProcessTurn(r.Context(), sessionID, data)
	if err != nil {
		h.logger.Error("turn failed", zap.String("session", sessionID), zap.Error(err))
		switch {
		case errors.Is(err, turn.ErrEmptyTranscript):
			utils.RespondError(w, http.StatusInternalServerError, "transcription failed")
		case errors.Is(err, turn.ErrSynthesisFailed):
			utils.RespondError(w, http.StatusInternalServerError, "speech synthesis failed")
		default:
			utils.RespondError(w, http.StatusInternalServerError, "turn processing failed")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{
		Transcript:  result.Transcript,
		Emotion:     result.Emotion,
		CrisisFlag:  result.Crisis,
		Reply:       result.Reply,
		BotAudioURL: fmt.Sprintf("/api/audio/%s/%s", result.SessionID, result.Stamp),
	})
}

func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	stamp := chi.URLParam(r, "stamp")

	path, ok := h.finder.ReplyPath(sessionID, stamp)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "audio not found")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

func isWAVContentType(contentType string) bool {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	return mediaType == "audio/wav" || mediaType == "audio/x-wav"
}
