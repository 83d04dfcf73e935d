package queue

import (
	"encoding/json"
	"fmt"
)

// Event types published by the API.
const (
	EventAnalysisCompleted = "analysis.completed"

	MessageVersion = 1
)

// Message is the payload delivered to downstream consumers once an analysis is stored.
type Message struct {
	Type        string  `json:"type"`
	AnalysisID  string  `json:"analysisId"`
	UserID      string  `json:"userId"`
	RequestID   string  `json:"requestId,omitempty"`
	Score       float64 `json:"score"`
	Grade       string  `json:"grade"`
	PayloadKind string  `json:"payloadKind"`
	Model       string  `json:"model"`
	Strategy    string  `json:"extractionStrategy,omitempty"`
	CompletedAt string  `json:"completedAt"`
	Version     int     `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Type == "" {
		msg.Type = EventAnalysisCompleted
	}
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.AnalysisID == "" {
		return Message{}, fmt.Errorf("message missing analysisId")
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	return msg, nil
}
