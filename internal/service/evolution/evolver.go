// Package evolution maintains the long-lived user profile. After a session
// ends, the full session history and the current insight notes are fed to the
// model, which emits a replacement set of notes. The loop is best effort; a
// failed run leaves the previous notes in place.
package evolution

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

// historyWindow caps how many exchanges one evolution run reads back.
const historyWindow = 100

const insightQuery = `حلل سجل المحادثة التالي بين مستخدم عماني ومعالج افتراضي:
{history}

الملاحظات السابقة عن المستخدم:
{insights}

المطلوب: استخرج أو حدث ملف تعريف المستخدم النفسي بنقاط مختصرة جداً.
ركز على: المواضيع المتكررة، أسلوب التخاطب المفضل، المحفزات العاطفية، وأي تفاصيل شخصية مهمة ذكرها.
اكتب النتيجة كنقاط باللغة العربية، ولا تزد عن 5 نقاط جوهرية.`

// Store is the persistence slice the evolver needs.
type Store interface {
	History(ctx context.Context, sessionID string, limit int) ([]model.Exchange, error)
	Profile(ctx context.Context, userID string) (string, error)
	SaveProfile(ctx context.Context, userID, insights string) error
}

// Evolver rewrites the user's insight notes from one finished session.
type Evolver struct {
	chain  compose.Runnable[map[string]any, *schema.Message]
	store  Store
	logger *zap.Logger
}

// NewEvolver compiles the insight chain against the given model.
func NewEvolver(ctx context.Context, chatModel einomodel.BaseChatModel, store Store, logger *zap.Logger) (*Evolver, error) {
	promptTemplate := prompt.FromMessages(schema.FString, schema.UserMessage(insightQuery))

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	compiled, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile insight chain: %w", err)
	}
	return &Evolver{chain: compiled, store: store, logger: logger}, nil
}

// EvolveSession replaces the user's insight notes with a fresh set derived
// from the session. Empty sessions and empty model output are no-ops so that
// a bad run can never erase existing notes.
func (e *Evolver) EvolveSession(ctx context.Context, sessionID, userID string) error {
	history, err := e.store.History(ctx, sessionID, historyWindow)
	if err != nil {
		return fmt.Errorf("read session history: %w", err)
	}
	if len(history) == 0 {
		e.logger.Info("session had no exchanges, insights unchanged", zap.String("session", sessionID))
		return nil
	}

	insights, err := e.store.Profile(ctx, userID)
	if err != nil {
		return fmt.Errorf("read insights: %w", err)
	}
	if insights == "" {
		insights = "لا توجد ملاحظات سابقة."
	}

	msg, err := e.chain.Invoke(ctx, map[string]any{
		"insights": insights,
		"history":  model.FormatHistory(history),
	})
	if err != nil {
		return fmt.Errorf("generate insights: %w", err)
	}

	updated := ""
	if msg != nil {
		updated = strings.TrimSpace(msg.Content)
	}
	if updated == "" {
		e.logger.Warn("insight generation returned nothing, keeping previous notes",
			zap.String("session", sessionID))
		return nil
	}

	if err := e.store.SaveProfile(ctx, userID, updated); err != nil {
		return fmt.Errorf("save insights: %w", err)
	}

	e.logger.Info("insights updated",
		zap.String("session", sessionID),
		zap.String("user", userID),
		zap.Int("exchanges", len(history)))
	return nil
}
