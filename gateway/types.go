package gateway

import "time"

// Channel kinds as reported by the platform.
const (
	ChannelKindText  = "text"
	ChannelKindVoice = "voice"
)

type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Category string `json:"category"`
}

// Field is one name/value pair in a rich reply.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Message is an outbound rich reply: a title, a body and an optional field list.
type Message struct {
	Title  string  `json:"title,omitempty"`
	Body   string  `json:"body"`
	Fields []Field `json:"fields,omitempty"`
}

// PromptOption is one selectable option on a prompt message. Selecting it
// yields Value on the interactions webhook.
type PromptOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type ScheduledEvent struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// InboundEvent is a text message delivered to the events webhook.
// DeliveryID changes per delivery attempt and is used for dedup.
type InboundEvent struct {
	DeliveryID      string `json:"delivery_id"`
	Type            string `json:"type"`
	ChannelID       string `json:"channel_id"`
	ChannelCategory string `json:"channel_category"`
	UserID          string `json:"user_id"`
	Text            string `json:"text"`
}

// Interaction is a discrete option-selection delivered to the interactions
// webhook. DeliveryID changes per delivery attempt and is used for dedup.
type Interaction struct {
	DeliveryID string `json:"delivery_id"`
	Type       string `json:"type"`
	MessageID  string `json:"message_id"`
	ChannelID  string `json:"channel_id"`
	UserID     string `json:"user_id"`
	Value      string `json:"value"`
}

type postMessageRequest struct {
	Message
	Options []PromptOption `json:"options,omitempty"`
}

type postMessageResponse struct {
	ID string    `json:"id"`
	TS time.Time `json:"ts"`
}

type updateMessageRequest struct {
	Body           string `json:"body,omitempty"`
	DisableOptions bool   `json:"disable_options"`
}

type ephemeralRequest struct {
	UserID string `json:"user_id"`
	Body   string `json:"body"`
}

type createEventRequest struct {
	ChannelID   string    `json:"channel_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}
