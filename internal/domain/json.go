package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// jsonBytes normalizes a raw database value into a JSON byte slice.
// Parameters:
//   - value: raw database value, either []byte or string.
//   - typeName: type name used in the error message.
// Returns:
//   - []byte: JSON bytes ready for unmarshaling.
//   - error: non-nil if the value has an unexpected type.
func jsonBytes(value interface{}, typeName string) ([]byte, error) {
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return nil, errors.New("failed to scan " + typeName)
		}
		bytes = []byte(str)
	}
	return bytes, nil
}

// JSONMap is a custom type for storing arbitrary JSON objects in the database.
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the map.
//   - error: non-nil if marshaling fails.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	bytes, err := jsonBytes(value, "JSONMap")
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, m)
}

// StringList is a custom type for storing string arrays as JSON in the database.
type StringList []string

// Value implements the driver.Valuer interface for database serialization.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	bytes, err := jsonBytes(value, "StringList")
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, l)
}

// FailoverDetails describes a source switch on a channel: which source was
// active before and after, the verdict that triggered it, and the channel
// status transition that accompanied it.
type FailoverDetails struct {
	FromSourceID string `json:"from_source_id"`
	ToSourceID   string `json:"to_source_id"`
	Verdict      string `json:"verdict"`
	Reason       string `json:"reason"`
	FromStatus   string `json:"from_status"`
	ToStatus     string `json:"to_status"`
}

// ToMap converts the details into a JSONMap for event payloads.
// Parameters: none.
// Returns:
//   - JSONMap: map representation with stable keys.
func (d FailoverDetails) ToMap() JSONMap {
	return JSONMap{
		"from_source_id": d.FromSourceID,
		"to_source_id":   d.ToSourceID,
		"verdict":        d.Verdict,
		"reason":         d.Reason,
		"from_status":    d.FromStatus,
		"to_status":      d.ToStatus,
	}
}

// TranscriptSegment is a single timed span of transcribed speech.
type TranscriptSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Speaker    string  `json:"speaker,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// TranscriptSegments is a custom type for storing transcript spans as JSON.
type TranscriptSegments []TranscriptSegment

// Value implements the driver.Valuer interface for database serialization.
func (s TranscriptSegments) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (s *TranscriptSegments) Scan(value interface{}) error {
	if value == nil {
		*s = TranscriptSegments{}
		return nil
	}
	bytes, err := jsonBytes(value, "TranscriptSegments")
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, s)
}

// EmotionScore is one detected emotion with its intensity in [0, 1].
type EmotionScore struct {
	Emotion string  `json:"emotion"`
	Score   float64 `json:"score"`
}

// EmotionScores is a custom type for storing emotion scores as JSON.
type EmotionScores []EmotionScore

// Value implements the driver.Valuer interface for database serialization.
func (e EmotionScores) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	return json.Marshal(e)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (e *EmotionScores) Scan(value interface{}) error {
	if value == nil {
		*e = EmotionScores{}
		return nil
	}
	bytes, err := jsonBytes(value, "EmotionScores")
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, e)
}

// NamedEntity is one entity extracted from segment content. Flagged marks
// entities that matched a watchlist and should surface as insights.
type NamedEntity struct {
	Text    string `json:"text"`
	Type    string `json:"type"`
	Flagged bool   `json:"flagged,omitempty"`
}

// NamedEntities is a custom type for storing extracted entities as JSON.
type NamedEntities []NamedEntity

// Value implements the driver.Valuer interface for database serialization.
func (n NamedEntities) Value() (driver.Value, error) {
	if n == nil {
		return "[]", nil
	}
	return json.Marshal(n)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (n *NamedEntities) Scan(value interface{}) error {
	if value == nil {
		*n = NamedEntities{}
		return nil
	}
	bytes, err := jsonBytes(value, "NamedEntities")
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, n)
}

// KeyMoment is a notable timestamp inside a summarized segment.
type KeyMoment struct {
	Timestamp   float64 `json:"timestamp"`
	Description string  `json:"description"`
}

// KeyMoments is a custom type for storing key moments as JSON.
type KeyMoments []KeyMoment

// Value implements the driver.Valuer interface for database serialization.
func (k KeyMoments) Value() (driver.Value, error) {
	if k == nil {
		return "[]", nil
	}
	return json.Marshal(k)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (k *KeyMoments) Scan(value interface{}) error {
	if value == nil {
		*k = KeyMoments{}
		return nil
	}
	bytes, err := jsonBytes(value, "KeyMoments")
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, k)
}
