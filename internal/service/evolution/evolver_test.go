package evolution

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	model "github.com/alyahmadi/sakina/backend/internal/model/therapy"
)

type stubModel struct {
	output  string
	err     error
	calls   int
	prompts []string
}

func (s *stubModel) Generate(_ context.Context, messages []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	s.calls++
	for _, m := range messages {
		s.prompts = append(s.prompts, m.Content)
	}
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.output, nil), nil
}

func (s *stubModel) Stream(ctx context.Context, messages []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := s.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

type memoryStore struct {
	history []model.Exchange
	profile string
	saves   int
}

func (m *memoryStore) History(context.Context, string, int) ([]model.Exchange, error) {
	return m.history, nil
}

func (m *memoryStore) Profile(context.Context, string) (string, error) {
	return m.profile, nil
}

func (m *memoryStore) SaveProfile(_ context.Context, _, insights string) error {
	m.profile = insights
	m.saves++
	return nil
}

func newEvolver(t *testing.T, chatModel einomodel.BaseChatModel, store Store) *Evolver {
	t.Helper()
	e, err := NewEvolver(context.Background(), chatModel, store, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEvolver err: %v", err)
	}
	return e
}

func TestEvolveSessionRewritesProfile(t *testing.T) {
	chatModel := &stubModel{output: "- قلق متكرر من العمل\n- يستجيب للطمأنة"}
	store := &memoryStore{
		history: []model.Exchange{{Transcript: "أشعر بضغط في العمل", Reply: "خذ نفس عميق"}},
		profile: "- ملاحظة قديمة",
	}

	if err := newEvolver(t, chatModel, store).EvolveSession(context.Background(), "s1", model.DefaultUserID); err != nil {
		t.Fatalf("EvolveSession err: %v", err)
	}

	if store.profile != "- قلق متكرر من العمل\n- يستجيب للطمأنة" {
		t.Fatalf("profile not replaced: %q", store.profile)
	}
	joined := strings.Join(chatModel.prompts, "\n")
	if !strings.Contains(joined, "- ملاحظة قديمة") {
		t.Fatal("previous insights missing from prompt")
	}
	if !strings.Contains(joined, "أشعر بضغط في العمل") {
		t.Fatal("session history missing from prompt")
	}
	if !strings.Contains(joined, "ولا تزد عن 5 نقاط") {
		t.Fatal("prompt must cap the notes at five bullet points")
	}
	for _, category := range []string{"المواضيع المتكررة", "أسلوب التخاطب المفضل", "المحفزات العاطفية", "تفاصيل شخصية"} {
		if !strings.Contains(joined, category) {
			t.Fatalf("prompt missing category %q", category)
		}
	}
}

func TestEvolveSessionIdempotentForDeterministicModel(t *testing.T) {
	chatModel := &stubModel{output: "- قلق متكرر من العمل"}
	store := &memoryStore{
		history: []model.Exchange{{Transcript: "أشعر بضغط في العمل", Reply: "خذ نفس عميق"}},
		profile: "- ملاحظة قديمة",
	}
	evolver := newEvolver(t, chatModel, store)

	if err := evolver.EvolveSession(context.Background(), "s1", model.DefaultUserID); err != nil {
		t.Fatalf("first EvolveSession err: %v", err)
	}
	afterFirst := store.profile

	if err := evolver.EvolveSession(context.Background(), "s1", model.DefaultUserID); err != nil {
		t.Fatalf("second EvolveSession err: %v", err)
	}

	if store.profile != afterFirst {
		t.Fatalf("repeated run changed the profile: %q != %q", store.profile, afterFirst)
	}
	if store.profile != "- قلق متكرر من العمل" {
		t.Fatalf("unexpected final profile: %q", store.profile)
	}
}

func TestEvolveSessionEmptyHistoryIsNoOp(t *testing.T) {
	chatModel := &stubModel{output: "يجب ألا يُستدعى"}
	store := &memoryStore{profile: "- ملاحظة محفوظة"}

	if err := newEvolver(t, chatModel, store).EvolveSession(context.Background(), "s1", model.DefaultUserID); err != nil {
		t.Fatalf("EvolveSession err: %v", err)
	}

	if chatModel.calls != 0 {
		t.Fatalf("model must not run for an empty session, got %d calls", chatModel.calls)
	}
	if store.saves != 0 || store.profile != "- ملاحظة محفوظة" {
		t.Fatal("profile must be untouched for an empty session")
	}
}

func TestEvolveSessionEmptyOutputKeepsNotes(t *testing.T) {
	chatModel := &stubModel{output: "   "}
	store := &memoryStore{
		history: []model.Exchange{{Transcript: "مرحبا", Reply: "أهلاً"}},
		profile: "- ملاحظة محفوظة",
	}

	if err := newEvolver(t, chatModel, store).EvolveSession(context.Background(), "s1", model.DefaultUserID); err != nil {
		t.Fatalf("EvolveSession err: %v", err)
	}

	if store.saves != 0 || store.profile != "- ملاحظة محفوظة" {
		t.Fatal("empty model output must not overwrite notes")
	}
}

func TestEvolveSessionModelErrorSurfaces(t *testing.T) {
	chatModel := &stubModel{err: errors.New("backend down")}
	store := &memoryStore{
		history: []model.Exchange{{Transcript: "مرحبا", Reply: "أهلاً"}},
	}

	if err := newEvolver(t, chatModel, store).EvolveSession(context.Background(), "s1", model.DefaultUserID); err == nil {
		t.Fatal("expected error from failed generation")
	}
	if store.saves != 0 {
		t.Fatal("failed run must not save")
	}
}

type countingAnalyzer struct {
	mu       sync.Mutex
	sessions []string
	done     chan struct{}
}

func (c *countingAnalyzer) EvolveSession(_ context.Context, sessionID, _ string) error {
	c.mu.Lock()
	c.sessions = append(c.sessions, sessionID)
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

func TestDispatcherRunsEnqueuedJobs(t *testing.T) {
	analyzer := &countingAnalyzer{done: make(chan struct{}, 2)}
	d := NewDispatcher(analyzer, 2, zap.NewNop())
	d.Start(context.Background())
	defer d.Close()

	if !d.Enqueue("s1", model.DefaultUserID) {
		t.Fatal("enqueue into empty queue must succeed")
	}
	if !d.Enqueue("s2", model.DefaultUserID) {
		t.Fatal("enqueue within capacity must succeed")
	}

	for i := 0; i < 2; i++ {
		select {
		case <-analyzer.done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not process queued jobs")
		}
	}

	analyzer.mu.Lock()
	defer analyzer.mu.Unlock()
	if len(analyzer.sessions) != 2 {
		t.Fatalf("expected 2 processed sessions, got %d", len(analyzer.sessions))
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	// No Start call, so the queue never drains.
	d := NewDispatcher(&countingAnalyzer{done: make(chan struct{}, 1)}, 1, zap.NewNop())

	if !d.Enqueue("s1", model.DefaultUserID) {
		t.Fatal("first enqueue must succeed")
	}
	if d.Enqueue("s2", model.DefaultUserID) {
		t.Fatal("enqueue into a full queue must report a drop")
	}
}
