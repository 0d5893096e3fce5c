// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package models

// Outbound message types on the client channel. Every payload carries a Type
// discriminator; ordering per session is the arrival order of the upstream
// events post-filter.
const (
	PayloadStatus             = "status"
	PayloadError              = "error"
	PayloadChat               = "chat"
	PayloadGift               = "gift"
	PayloadLike               = "like"
	PayloadViewerJoin         = "viewer_join"
	PayloadViewerFirstMessage = "viewer_first_message"
	PayloadFollow             = "follow"
	PayloadSubscribe          = "subscribe"
	PayloadShare              = "share"
	PayloadViewer             = "viewer"
)

// Payload is one outbound JSON object written to the client channel.
type Payload struct {
	Type string `json:"type"`

	// status
	Connected *bool  `json:"connected,omitempty"`
	Handle    string `json:"handle,omitempty"`

	// Message doubles as the status/error text and the chat message body.
	Message string `json:"message,omitempty"`

	// error
	Details string `json:"details,omitempty"`

	// chat / gift / like / joins / follows
	User     string `json:"user,omitempty"`
	GiftID   string `json:"gift_id,omitempty"`
	GiftName string `json:"gift_name,omitempty"`
	Count    int    `json:"count,omitempty"`
	Diamonds int    `json:"diamonds,omitempty"`

	// viewer
	Current int `json:"current,omitempty"`
	Total   int `json:"total,omitempty"`

	// synthesized media
	TTSURL   string `json:"tts_url,omitempty"`
	SoundURL string `json:"sound_url,omitempty"`
}

// StatusPayload builds a status payload.
func StatusPayload(connected bool, message, handle string) Payload {
	return Payload{Type: PayloadStatus, Connected: &connected, Message: message, Handle: handle}
}

// ErrorPayload builds an error payload.
func ErrorPayload(message, details string) Payload {
	return Payload{Type: PayloadError, Message: message, Details: details}
}
