package therapy

import "time"

// DefaultUserID identifies the single anonymous user until auth lands.
// TODO: replace with authenticated user identity once accounts exist.
const DefaultUserID = "default_user"

// Session captures one anonymous voice conversation.
type Session struct {
	ID          string    `json:"sessionId"`
	ConsentText string    `json:"consentText"`
	CreatedAt   time.Time `json:"createdAt"`
}
