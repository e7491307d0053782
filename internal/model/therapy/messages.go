package therapy

// Fixed Omani Arabic policy strings. The crisis reply deliberately bypasses
// generation: it must stay deterministic no matter what the model does.
const (
	// NeutralEmotion is returned whenever emotion classification is unavailable.
	NeutralEmotion = "محايد"

	// CrisisAffirmation is the literal token the crisis classifier is asked to emit.
	CrisisAffirmation = "نعم"

	// CrisisReply replaces generated content whenever the crisis gate fires.
	CrisisReply = "🚨 نلاحظ حالة نفسية حرجة، يُرجى التواصل مع مختص فورًا."

	// RedirectReply is used when the draft pass produces nothing.
	RedirectReply = "أشكرك على تواصلك. أنصحك بمراجعة مختص إذا كنت تمر بأزمة."

	// ApologyReply is used when response synthesis fails internally.
	ApologyReply = "عذراً، حصل خلل فني. حاول مرة ثانية أو تواصل مع مختص."
)

// ConsentText returns the recording/privacy disclaimer shown when a session starts.
func ConsentText() string {
	return "أوافق على تسجيل الجلسة وحفظها بشكل خاص حسب سياسة الخصوصية. " +
		"هذا التطبيق ليس بديلاً عن المساعدة الطبية أو الطارئة."
}
