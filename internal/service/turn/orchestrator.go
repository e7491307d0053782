// Package turn sequences one full voice exchange: transcribe, classify,
// generate (or crisis shortcut), synthesize, log. Stages run strictly in
// that order; nothing is shared across turns except what the store holds.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alyahmadi/sakina/backend/internal/model/therapy"
)

// Terminal turn failures. Nothing is persisted when these are returned.
var (
	ErrEmptyTranscript = errors.New("transcription produced no text")
	ErrSynthesisFailed = errors.New("speech synthesis produced no audio")
)

const stampLayout = "20060102_150405"

// SpeechGateway covers the audio capabilities of the model provider.
type SpeechGateway interface {
	Transcribe(ctx context.Context, audio []byte) string
	Synthesize(ctx context.Context, text, voiceID string) []byte
}

// SafetyAnalyzer classifies the newest transcript in session context.
type SafetyAnalyzer interface {
	ClassifyEmotion(ctx context.Context, transcript string, history []therapy.Exchange) string
	ClassifyCrisis(ctx context.Context, transcript string, history []therapy.Exchange) bool
}

// Responder generates the reply text for non-crisis turns.
type Responder interface {
	Respond(ctx context.Context, transcript, emotion string, history []therapy.Exchange, insights string) string
}

// Store is the slice of persistence the orchestrator needs.
type Store interface {
	AppendTurn(ctx context.Context, turn therapy.Turn) error
	History(ctx context.Context, sessionID string, limit int) ([]therapy.Exchange, error)
	Profile(ctx context.Context, userID string) (string, error)
}

// AudioStore persists turn audio artifacts.
type AudioStore interface {
	SaveInput(sessionID, stamp string, data []byte) (string, error)
	SaveReply(sessionID, stamp string, pcm []byte) (string, error)
}

// Options carries the per-deployment knobs.
type Options struct {
	HistoryLimit int
	TTSVoice     string
}

// Result is what the HTTP layer hands back to the caller.
type Result struct {
	SessionID      string
	Stamp          string
	Transcript     string
	Emotion        string
	Crisis         bool
	Reply          string
	ReplyAudioPath string
}

// Orchestrator drives the turn state machine.
type Orchestrator struct {
	gateway   SpeechGateway
	safety    SafetyAnalyzer
	responder Responder
	store     Store
	audio     AudioStore
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(gateway SpeechGateway, safety SafetyAnalyzer, responder Responder, store Store, audio AudioStore, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.HistoryLimit < 1 {
		opts.HistoryLimit = 50
	}
	return &Orchestrator{
		gateway:   gateway,
		safety:    safety,
		responder: responder,
		store:     store,
		audio:     audio,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessTurn runs one complete exchange for the given session.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID string, audio []byte) (*Result, error) {
	stamp := o.now().UTC().Format(stampLayout)

	inputPath, err := o.audio.SaveInput(sessionID, stamp, audio)
	if err != nil {
		return nil, fmt.Errorf("store input audio: %w", err)
	}

	history, err := o.store.History(ctx, sessionID, o.opts.HistoryLimit)
	if err != nil {
		o.logger.Warn("history read failed, continuing without context",
			zap.String("session", sessionID), zap.Error(err))
		history = nil
	}

	transcript := strings.TrimSpace(o.gateway.Transcribe(ctx, audio))
	if transcript == "" {
		o.logger.Error("transcription unavailable, aborting turn", zap.String("session", sessionID))
		return nil, ErrEmptyTranscript
	}

	emotion := o.safety.ClassifyEmotion(ctx, transcript, history)
	crisis := o.safety.ClassifyCrisis(ctx, transcript, history)

	var reply string
	if crisis {
		// Crisis replies stay fixed and model-independent.
		o.logger.Warn("crisis gate fired, using referral reply", zap.String("session", sessionID))
		reply = therapy.CrisisReply
	} else {
		insights, err := o.store.Profile(ctx, therapy.DefaultUserID)
		if err != nil {
			o.logger.Warn("profile read failed, replying without insights", zap.Error(err))
			insights = ""
		}
		reply = o.responder.Respond(ctx, transcript, emotion, history, insights)
	}

	pcm := o.gateway.Synthesize(ctx, reply, o.opts.TTSVoice)
	if len(pcm) == 0 {
		o.logger.Error("synthesis unavailable, aborting turn", zap.String("session", sessionID))
		return nil, ErrSynthesisFailed
	}

	replyPath, err := o.audio.SaveReply(sessionID, stamp, pcm)
	if err != nil {
		return nil, fmt.Errorf("store reply audio: %w", err)
	}

	record := therapy.Turn{
		SessionID:      sessionID,
		Timestamp:      o.now().UTC(),
		Transcript:     transcript,
		Emotion:        emotion,
		Reply:          reply,
		Crisis:         crisis,
		InputAudioPath: inputPath,
		ReplyAudioPath: replyPath,
	}
	if err := o.store.AppendTurn(ctx, record); err != nil {
		// The user still gets their reply; only the log is lost.
		o.logger.Warn("turn logging failed", zap.String("session", sessionID), zap.Error(err))
	}

	return &Result{
		SessionID:      sessionID,
		Stamp:          stamp,
		Transcript:     transcript,
		Emotion:        emotion,
		Crisis:         crisis,
		Reply:          reply,
		ReplyAudioPath: replyPath,
	}, nil
}
