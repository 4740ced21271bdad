package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Webhook is the request body LINE posts to the callback endpoint.
type Webhook struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is a single webhook event. Only message events with a text message
// reach the pipeline; everything else is skipped.
type Event struct {
	Type           string  `json:"type"`
	WebhookEventID string  `json:"webhookEventId"`
	ReplyToken     string  `json:"replyToken"`
	Timestamp      int64   `json:"timestamp"` // milliseconds since epoch
	Source         Source  `json:"source"`
	Message        Message `json:"message"`
}

// Source identifies the sender of an event.
type Source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// Message is the message part of a message event.
type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// EventID returns the identifier used for webhook deduplication: the
// webhook event ID when the platform sends one, else the message ID.
func (e Event) EventID() string {
	if e.WebhookEventID != "" {
		return e.WebhookEventID
	}
	return e.Message.ID
}

// ValidateSignature checks the X-Line-Signature header against the raw
// request body: base64(HMAC-SHA256(channelSecret, body)).
func ValidateSignature(channelSecret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
