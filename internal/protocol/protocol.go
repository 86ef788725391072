// Package protocol defines the JSON messages exchanged with scanner clients over the websocket.
//
// Client to server:
//
//	{"type": "feature_vector", "vector": [...], "timestamp": 1700000000000}
//
// Server to client:
//
//	{"type": "match_result", "id": "3", "similarity": 0.92, "video_url": "https://..."}
//	{"type": "error", "message": "..."}
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kozaktomas/marker-scanner/internal/matcher"
)

// Message types.
const (
	TypeFeatureVector = "feature_vector"
	TypeMatchResult   = "match_result"
	TypeError         = "error"
)

var (
	// ErrUnknownType is returned for messages with an unrecognized type discriminator.
	ErrUnknownType = errors.New("unknown message type")

	// ErrEmptyVector is returned for feature vector messages without values.
	ErrEmptyVector = errors.New("feature vector is empty")
)

// FeatureVectorMessage carries one live embedding from a client.
type FeatureVectorMessage struct {
	Type      string    `json:"type"`
	Vector    []float32 `json:"vector"`
	Timestamp int64     `json:"timestamp"` // Unix milliseconds, set by the client
}

// MatchResultMessage reports the best catalog entry for a feature vector.
// A frame without a match is sent with empty ID and VideoURL.
type MatchResultMessage struct {
	Type       string  `json:"type"`
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
	VideoURL   string  `json:"video_url"`
	Name       string  `json:"name,omitempty"`
	Timestamp  int64   `json:"timestamp,omitempty"` // echoes the client timestamp
}

// ErrorMessage reports a problem with a client message.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// IsMatch reports whether the result refers to a catalog entry.
func (m MatchResultMessage) IsMatch() bool {
	return m.ID != ""
}

// NewFeatureVector builds a client message stamped with the given time.
func NewFeatureVector(vec []float32, at time.Time) FeatureVectorMessage {
	return FeatureVectorMessage{
		Type:      TypeFeatureVector,
		Vector:    vec,
		Timestamp: at.UnixMilli(),
	}
}

// NewMatchResult builds a reply for an accepted match.
func NewMatchResult(r *matcher.Result, timestamp int64) MatchResultMessage {
	return MatchResultMessage{
		Type:       TypeMatchResult,
		ID:         strconv.Itoa(r.EntryID),
		Similarity: r.Similarity,
		VideoURL:   r.VideoURL,
		Name:       r.Name,
		Timestamp:  timestamp,
	}
}

// NewNoMatch builds a reply for a frame below the threshold; bestSimilarity may be zero.
func NewNoMatch(bestSimilarity float64, timestamp int64) MatchResultMessage {
	return MatchResultMessage{
		Type:       TypeMatchResult,
		Similarity: bestSimilarity,
		Timestamp:  timestamp,
	}
}

// NewError builds an error reply.
func NewError(format string, args ...any) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: fmt.Sprintf(format, args...)}
}

// DecodeClient parses and validates a client message.
func DecodeClient(data []byte) (*FeatureVectorMessage, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	switch envelope.Type {
	case TypeFeatureVector:
		var msg FeatureVectorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid %s message: %w", TypeFeatureVector, err)
		}
		if len(msg.Vector) == 0 {
			return nil, ErrEmptyVector
		}
		return &msg, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrUnknownType)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, envelope.Type)
	}
}

// DecodeServer parses a server message into either a MatchResultMessage or an ErrorMessage.
func DecodeServer(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	switch envelope.Type {
	case TypeMatchResult:
		var msg MatchResultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid %s message: %w", TypeMatchResult, err)
		}
		return msg, nil
	case TypeError:
		var msg ErrorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid %s message: %w", TypeError, err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, envelope.Type)
	}
}
