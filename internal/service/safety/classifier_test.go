package safety

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/alyahmadi/sakina/backend/internal/model/therapy"
)

// stubModel plays back a fixed completion and records the prompt it saw.
type stubModel struct {
	content string
	err     error
	prompts []string
}

func (s *stubModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	var parts []string
	for _, msg := range input {
		parts = append(parts, msg.Content)
	}
	s.prompts = append(s.prompts, strings.Join(parts, "\n"))
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.content, nil), nil
}

func (s *stubModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := s.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func newClassifier(t *testing.T, emotion, crisis *stubModel) *Classifier {
	t.Helper()
	c, err := NewClassifier(context.Background(), emotion, crisis, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClassifier err: %v", err)
	}
	return c
}

func TestClassifyEmotionTakesFirstToken(t *testing.T) {
	c := newClassifier(t, &stubModel{content: "قلق شديد جداً"}, &stubModel{content: "لا"})

	got := c.ClassifyEmotion(context.Background(), "مديري يضغط علي", nil)

	if got != "قلق" {
		t.Fatalf("expected first token, got %q", got)
	}
}

func TestClassifyEmotionFallsBackToNeutral(t *testing.T) {
	cases := map[string]*stubModel{
		"empty output": {content: "   "},
		"model error":  {err: errors.New("provider down")},
	}

	for name, emotionModel := range cases {
		t.Run(name, func(t *testing.T) {
			c := newClassifier(t, emotionModel, &stubModel{content: "لا"})
			if got := c.ClassifyEmotion(context.Background(), "مرحبا", nil); got != therapy.NeutralEmotion {
				t.Fatalf("expected neutral label, got %q", got)
			}
		})
	}
}

func TestClassifyCrisisDetectsAffirmative(t *testing.T) {
	crisisModel := &stubModel{content: "نعم"}
	c := newClassifier(t, &stubModel{content: "حزن"}, crisisModel)

	history := []therapy.Exchange{{Transcript: "أشعر بقلق", Reply: "حاول الاسترخاء"}}
	if !c.ClassifyCrisis(context.Background(), "أريد أن أؤذي نفسي", history) {
		t.Fatal("expected crisis verdict to be true")
	}

	// The prompt must carry the prior exchanges, not only the new message.
	if len(crisisModel.prompts) != 1 || !strings.Contains(crisisModel.prompts[0], "حاول الاسترخاء") {
		t.Fatalf("history missing from crisis prompt: %q", crisisModel.prompts)
	}
}

func TestClassifyCrisisNegative(t *testing.T) {
	c := newClassifier(t, &stubModel{content: "تفاؤل"}, &stubModel{content: "لا"})

	if c.ClassifyCrisis(context.Background(), "كيف أنظم وقتي؟", nil) {
		t.Fatal("expected no crisis for a benign message")
	}
}

func TestClassifyCrisisFailsOpen(t *testing.T) {
	cases := map[string]*stubModel{
		"empty output": {content: ""},
		"model error":  {err: errors.New("provider down")},
	}

	for name, crisisModel := range cases {
		t.Run(name, func(t *testing.T) {
			c := newClassifier(t, &stubModel{content: "حزن"}, crisisModel)
			if c.ClassifyCrisis(context.Background(), "أريد أن أؤذي نفسي", nil) {
				t.Fatal("unavailable classifier must default to no crisis")
			}
		})
	}
}
