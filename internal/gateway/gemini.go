// Package gateway is the single boundary to the external generative model
// provider. Speech operations retry on transient failure and degrade to an
// empty sentinel; text generation is single-shot because callers layer their
// own fallbacks on top.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/alyahmadi/sakina/backend/internal/config"
)

const (
	maxAudioAttempts = 3
	audioRetryDelay  = 2 * time.Second

	// The transcription instruction pins the model to Omani Arabic output.
	sttInstruction = "يرجى تحويل هذا الملف الصوتي إلى نص باللهجة العمانية فقط."
)

// Gateway exposes the three provider capabilities the pipeline needs.
// Empty results signal "provider unavailable"; no method returns an error.
type Gateway interface {
	Transcribe(ctx context.Context, audio []byte) string
	Synthesize(ctx context.Context, text, voiceID string) []byte
	GenerateText(ctx context.Context, prompt string, maxTokens int, temperature float32, model string) string
}

// contentGenerator matches the slice of the genai models API we call.
// *genai.Models satisfies it; tests substitute a scripted fake.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements Gateway against the Google Gemini API.
type Gemini struct {
	models     contentGenerator
	cfg        config.GeminiConfig
	logger     *zap.Logger
	retryDelay time.Duration
}

// NewGemini creates the provider client from configuration.
func NewGemini(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if !cfg.Enabled() {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &Gemini{
		models:     client.Models,
		cfg:        cfg,
		logger:     logger,
		retryDelay: audioRetryDelay,
	}, nil
}

// Transcribe converts one validated WAV utterance to Omani Arabic text.
// Returns "" once the attempt budget is exhausted.
func (g *Gemini) Transcribe(ctx context.Context, audio []byte) string {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(sttInstruction),
			genai.NewPartFromBytes(audio, "audio/wav"),
		}, genai.RoleUser),
	}

	for attempt := 1; attempt <= maxAudioAttempts; attempt++ {
		start := time.Now()
		resp, err := g.models.GenerateContent(ctx, g.cfg.STTModel, contents, nil)
		if err == nil {
			g.logger.Info("transcription succeeded",
				zap.Int("attempt", attempt),
				zap.Duration("elapsed", time.Since(start)))
			return strings.TrimSpace(resp.Text())
		}

		g.logger.Warn("transcription attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		if !g.waitForRetry(ctx, attempt) {
			break
		}
	}
	return ""
}

// Synthesize converts reply text to raw PCM audio (24kHz mono 16-bit).
// Returns nil once the attempt budget is exhausted.
func (g *Gemini) Synthesize(ctx context.Context, text, voiceID string) []byte {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voiceID},
			},
		},
	}

	for attempt := 1; attempt <= maxAudioAttempts; attempt++ {
		start := time.Now()
		resp, err := g.models.GenerateContent(ctx, g.cfg.TTSModel, genai.Text(text), cfg)
		if err == nil {
			if pcm := firstInlineAudio(resp); len(pcm) > 0 {
				g.logger.Info("synthesis succeeded",
					zap.Int("attempt", attempt),
					zap.Duration("elapsed", time.Since(start)))
				return pcm
			}
			err = errors.New("response contained no audio data")
		}

		g.logger.Warn("synthesis attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		if !g.waitForRetry(ctx, attempt) {
			break
		}
	}
	return nil
}

// GenerateText issues a single completion call. Returns "" on any failure;
// callers fall back to fixed policy text instead of retrying here.
func (g *Gemini) GenerateText(ctx context.Context, prompt string, maxTokens int, temperature float32, model string) string {
	if model == "" {
		model = g.cfg.TextModel
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: int32(maxTokens),
	}

	resp, err := g.models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		g.logger.Warn("text generation failed", zap.String("model", model), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(resp.Text())
}

func (g *Gemini) waitForRetry(ctx context.Context, attempt int) bool {
	if attempt >= maxAudioAttempts {
		return false
	}
	select {
	case <-ctx.Done():
		g.logger.Warn("retry abandoned, context done", zap.Error(ctx.Err()))
		return false
	case <-time.After(g.retryDelay):
		return true
	}
}

func firstInlineAudio(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}
