package therapy

import (
	"fmt"
	"strings"

	model "github.com/alyahmadi/sakina/backend/internal/model/therapy"
)

// systemPrompt frames the therapist persona and injects the persisted user
// insights plus the conversation so far.
func systemPrompt(history []model.Exchange, insights string) string {
	var b strings.Builder
	b.WriteString("أنت معالج افتراضي عماني تستمع للمستخدم وتستخدم أساليب علمية ")
	b.WriteString("مثل العلاج السلوكي المعرفي وتراعي الدين والعادات المحلية.\n")

	if insights != "" {
		b.WriteString("\nملاحظات عن المستخدم:\n")
		b.WriteString(insights)
		b.WriteString("\n")
	}

	b.WriteString(model.FormatHistory(history))
	b.WriteString("\nرد بإيجاز، تعاطف، وعلاجات عملية باللهجة العمانية.")
	return b.String()
}

func draftQuery(userMessage, emotion string) string {
	return fmt.Sprintf("سؤال المستخدم: %s\nالعاطفة المتوقعة: %s\nجواب المعالج:", userMessage, emotion)
}

// reviewQuery asks the model to judge the draft for brevity, clarity and
// dialect fit, rewriting only when needed.
func reviewQuery(userMessage, draft string, history []model.Exchange) string {
	var b strings.Builder
	b.WriteString("راجع الرد التالي من معالج افتراضي عماني:\n")
	b.WriteString(model.FormatHistory(history))
	b.WriteString("\nسؤال المستخدم: ")
	b.WriteString(userMessage)
	b.WriteString("\nرد المعالج: ")
	b.WriteString(draft)
	b.WriteString("\n\nهل الرد مختصر، واضح، ودقيق باللهجة العمانية؟ إذا يحتاج تحسين، اكتبه من جديد مختصر وبلسان عماني. إذا جيد، أعده كما هو.")
	return b.String()
}
