// Package safety runs the per-turn understanding checks: emotion labelling
// and crisis screening. Both are advisory classifiers that must never fail a
// turn; on any trouble they fall back to the neutral label and the non-crisis
// verdict respectively.
package safety

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/alyahmadi/sakina/backend/internal/model/therapy"
)

const emotionPromptTemplate = "هذه محادثة بين مستخدم عماني ومعالج افتراضي باللهجة العمانية:\n" +
	"{history}\n" +
	"رسالة المستخدم الأخيرة:\n{transcript}\n" +
	"ما هي العاطفة الأساسية لهذه الرسالة؟ أجب بكلمة واحدة أو كلمتين (مثال: قلق، حزن، تفاؤل، توتر...)."

const crisisPromptTemplate = "محادثة بين مستخدم عماني ومعالج نفسي:\n" +
	"{history}\n" +
	"رسالة المستخدم الأخيرة:\n{transcript}\n" +
	"هل هناك أي علامات على وجود أزمة نفسية خطيرة (انتحار، إيذاء الذات، انهيار، خطر على الحياة)؟ أجب (نعم) أو (لا) فقط."

// Classifier evaluates the newest transcript against session history.
type Classifier struct {
	emotion compose.Runnable[map[string]any, *schema.Message]
	crisis  compose.Runnable[map[string]any, *schema.Message]
	logger  *zap.Logger
}

// NewClassifier compiles the two classification chains. The models are
// expected to be deterministic (temperature 0) with tight token budgets.
func NewClassifier(ctx context.Context, emotionModel, crisisModel model.BaseChatModel, logger *zap.Logger) (*Classifier, error) {
	emotionChain, err := buildChain(ctx, emotionPromptTemplate, emotionModel)
	if err != nil {
		return nil, fmt.Errorf("compile emotion chain: %w", err)
	}

	crisisChain, err := buildChain(ctx, crisisPromptTemplate, crisisModel)
	if err != nil {
		return nil, fmt.Errorf("compile crisis chain: %w", err)
	}

	return &Classifier{emotion: emotionChain, crisis: crisisChain, logger: logger}, nil
}

func buildChain(ctx context.Context, template string, chatModel model.BaseChatModel) (compose.Runnable[map[string]any, *schema.Message], error) {
	promptTemplate := prompt.FromMessages(schema.FString, schema.UserMessage(template))

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	return chain.Compile(ctx)
}

// ClassifyEmotion returns a one-or-two word Arabic emotion label, or the
// neutral label when the classifier is unavailable.
func (c *Classifier) ClassifyEmotion(ctx context.Context, transcript string, history []therapy.Exchange) string {
	msg, err := c.emotion.Invoke(ctx, classifierInput(transcript, history))
	if err != nil {
		c.logger.Error("emotion classification failed", zap.Error(err))
		return therapy.NeutralEmotion
	}

	content := messageContent(msg)
	if content == "" {
		c.logger.Warn("emotion classifier returned empty output")
		return therapy.NeutralEmotion
	}

	// Only the first token counts; the model occasionally elaborates.
	return strings.Fields(content)[0]
}

// ClassifyCrisis reports whether the newest message shows signs of a severe
// psychological crisis. Unavailable classifier means false: the turn proceeds
// through the normal reply path.
func (c *Classifier) ClassifyCrisis(ctx context.Context, transcript string, history []therapy.Exchange) bool {
	msg, err := c.crisis.Invoke(ctx, classifierInput(transcript, history))
	if err != nil {
		c.logger.Error("crisis classification failed, assuming no crisis", zap.Error(err))
		return false
	}

	content := messageContent(msg)
	if content == "" {
		c.logger.Warn("crisis classifier returned empty output, assuming no crisis")
		return false
	}

	return strings.Contains(content, therapy.CrisisAffirmation)
}

func classifierInput(transcript string, history []therapy.Exchange) map[string]any {
	return map[string]any{
		"history":    therapy.FormatHistory(history),
		"transcript": strings.TrimSpace(transcript),
	}
}

func messageContent(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	return strings.TrimSpace(msg.Content)
}
