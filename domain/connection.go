package domain

import (
	"encoding/json"
	"time"
)

// ConnectionStatus is the lifecycle state of the realtime connection.
type ConnectionStatus string

const (
	StatusIdle         ConnectionStatus = "idle"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
	// StatusFailed is reached once reconnect attempts are exhausted.
	StatusFailed ConnectionStatus = "failed"
)

// ConnectionQuality is a coarse estimate derived from heartbeats and errors.
type ConnectionQuality string

const (
	QualityUnknown   ConnectionQuality = "unknown"
	QualityPoor      ConnectionQuality = "poor"
	QualityGood      ConnectionQuality = "good"
	QualityExcellent ConnectionQuality = "excellent"
)

// Message is one inbound frame. Data is nil when the frame was not valid JSON.
type Message struct {
	Type       string          `json:"type,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Raw        []byte          `json:"-"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Decode unmarshals the parsed payload into v.
func (m Message) Decode(v interface{}) error {
	if m.Data == nil {
		return ErrInvalidPayload
	}
	return json.Unmarshal(m.Data, v)
}

// ConnectionState is the observable state of one logical realtime connection.
type ConnectionState struct {
	Status            ConnectionStatus  `json:"status"`
	ReconnectAttempts int               `json:"reconnect_attempts"`
	Quality           ConnectionQuality `json:"quality"`
	LastMessage       *Message          `json:"last_message,omitempty"`
	LastError         string            `json:"last_error,omitempty"`
	Enabled           bool              `json:"enabled"`
}
