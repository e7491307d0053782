// Package therapy produces the spoken reply for non-crisis turns. Generation
// is a two-pass pipeline: a creative draft, then a low-temperature review
// that may rewrite it. The review is advisory; its absence never fails a
// turn, and no error ever escapes Respond.
package therapy

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	model "github.com/alyahmadi/sakina/backend/internal/model/therapy"
)

// Responder runs the draft and review passes.
type Responder struct {
	draft  compose.Runnable[map[string]any, *schema.Message]
	review compose.Runnable[map[string]any, *schema.Message]
	logger *zap.Logger
}

// NewResponder compiles both generation chains. The draft model should be
// moderately creative, the review model close to deterministic.
func NewResponder(ctx context.Context, draftModel, reviewModel einomodel.BaseChatModel, logger *zap.Logger) (*Responder, error) {
	draftChain, err := compileChain(ctx, draftModel, true)
	if err != nil {
		return nil, fmt.Errorf("compile draft chain: %w", err)
	}

	reviewChain, err := compileChain(ctx, reviewModel, false)
	if err != nil {
		return nil, fmt.Errorf("compile review chain: %w", err)
	}

	return &Responder{draft: draftChain, review: reviewChain, logger: logger}, nil
}

func compileChain(ctx context.Context, chatModel einomodel.BaseChatModel, withSystem bool) (compose.Runnable[map[string]any, *schema.Message], error) {
	var promptTemplate prompt.ChatTemplate
	if withSystem {
		promptTemplate = prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.UserMessage("{query}"),
		)
	} else {
		promptTemplate = prompt.FromMessages(schema.FString, schema.UserMessage("{query}"))
	}

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	return chain.Compile(ctx)
}

// Respond generates the reply text for a non-crisis turn. The result is
// always usable: generation trouble degrades to fixed Arabic fallbacks.
func (r *Responder) Respond(ctx context.Context, transcript, emotion string, history []model.Exchange, insights string) string {
	userMessage := strings.TrimSpace(transcript)

	draft, err := r.draftPass(ctx, userMessage, emotion, history, insights)
	if err != nil {
		r.logger.Error("draft pass failed", zap.Error(err))
		return model.ApologyReply
	}
	if draft == "" {
		r.logger.Warn("draft pass returned empty reply, redirecting to professional help")
		return model.RedirectReply
	}

	refined, err := r.reviewPass(ctx, userMessage, draft, history)
	if err != nil {
		r.logger.Error("review pass failed", zap.Error(err))
		return model.ApologyReply
	}
	if refined == "" {
		r.logger.Warn("review pass returned empty output, keeping draft")
		return draft
	}
	return refined
}

func (r *Responder) draftPass(ctx context.Context, userMessage, emotion string, history []model.Exchange, insights string) (string, error) {
	msg, err := r.draft.Invoke(ctx, map[string]any{
		"system": systemPrompt(history, insights),
		"query":  draftQuery(userMessage, emotion),
	})
	if err != nil {
		return "", err
	}
	return messageContent(msg), nil
}

func (r *Responder) reviewPass(ctx context.Context, userMessage, draft string, history []model.Exchange) (string, error) {
	msg, err := r.review.Invoke(ctx, map[string]any{
		"query": reviewQuery(userMessage, draft, history),
	})
	if err != nil {
		return "", err
	}
	return messageContent(msg), nil
}

func messageContent(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	return strings.TrimSpace(msg.Content)
}
