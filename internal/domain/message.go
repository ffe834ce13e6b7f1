package domain

// Platform names an inbound channel.
type Platform string

const (
	WhatsApp  Platform = "whatsapp"
	Instagram Platform = "instagram"
	Facebook  Platform = "facebook"
)

// Platforms lists the supported channels in their display order.
var Platforms = []Platform{WhatsApp, Instagram, Facebook}

// Role tells who authored a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// TimestampLayout is the UTC, second-precision layout of Message.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Message is one immutable entry of the inbox log. A system message points
// at the inbound message it answers through ReplyTo.
type Message struct {
	ID        string   `json:"id"`
	Seq       int64    `json:"seq"`
	ThreadID  string   `json:"thread_id"`
	ReplyTo   string   `json:"reply_to,omitempty"`
	Platform  Platform `json:"platform"`
	Role      Role     `json:"role"`
	User      string   `json:"user"`
	Text      string   `json:"text"`
	Timestamp string   `json:"timestamp"`
}
