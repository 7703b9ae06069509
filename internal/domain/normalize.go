package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// localDateTime is the HTML datetime-local layout used by quiz authoring forms.
const localDateTime = "2006-01-02T15:04"

// TextValue decodes an option or answer stored as a string, a {"text": ...}
// object, a number or a bool, and always yields plain text.
type TextValue string

func (v *TextValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = TextValue(s)
	case '{':
		var obj struct {
			Text json.RawMessage `json:"text"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		var inner TextValue
		if len(obj.Text) > 0 {
			if err := inner.UnmarshalJSON(obj.Text); err != nil {
				return err
			}
		}
		*v = inner
	default:
		// numbers and booleans keep their literal spelling
		*v = TextValue(data)
	}
	return nil
}

// DecodeOptions normalizes a stored JSON options array into plain text.
func DecodeOptions(raw []byte) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil
	}
	var values []TextValue
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	options := make([]string, len(values))
	for i, v := range values {
		options[i] = string(v)
	}
	return options, nil
}

// NormalizeAnswer turns a stored correct answer into plain text. Values that
// were persisted as a JSON object are unwrapped to their text field.
func NormalizeAnswer(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return raw
	}
	var v TextValue
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return raw
	}
	return string(v)
}

// NormalizeQuestion applies per-type defaults once, at the data-model boundary.
func NormalizeQuestion(q Question) Question {
	if q.Options == nil {
		q.Options = []string{}
	}
	switch q.Type {
	case QuestionTrueFalse:
		if len(q.Options) == 0 {
			q.Options = append([]string(nil), TrueFalseOptions...)
		}
	case QuestionShortAnswer:
		q.Options = []string{}
	}
	q.CorrectAnswer = NormalizeAnswer(q.CorrectAnswer)
	return q
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw struct {
		AllowRetake json.RawMessage `json:"allowRetake"`
		TimeLimit   json.RawMessage `json:"timeLimit"`
		StartDate   json.RawMessage `json:"startDate"`
		EndDate     json.RawMessage `json:"endDate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Settings
	var err error
	if out.AllowRetake, err = decodeFlexibleBool(raw.AllowRetake); err != nil {
		return fmt.Errorf("allowRetake: %w", err)
	}
	if out.TimeLimit, err = decodeFlexibleInt(raw.TimeLimit); err != nil {
		return fmt.Errorf("timeLimit: %w", err)
	}
	if out.StartDate, err = decodeFlexibleTime(raw.StartDate); err != nil {
		return fmt.Errorf("startDate: %w", err)
	}
	if out.EndDate, err = decodeFlexibleTime(raw.EndDate); err != nil {
		return fmt.Errorf("endDate: %w", err)
	}
	*s = out
	return nil
}

func decodeFlexibleBool(raw json.RawMessage) (bool, error) {
	var v TextValue
	if err := v.UnmarshalJSON(raw); err != nil {
		return false, err
	}
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(string(v))
}

func decodeFlexibleInt(raw json.RawMessage) (*int, error) {
	var v TextValue
	if err := v.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(v)) == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	if err != nil {
		return nil, err
	}
	n := int(f)
	if n <= 0 {
		return nil, nil
	}
	return &n, nil
}

func decodeFlexibleTime(raw json.RawMessage) (*time.Time, error) {
	var v TextValue
	if err := v.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	s := strings.TrimSpace(string(v))
	if s == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseTimestamp accepts RFC 3339 timestamps, datetime-local values and plain
// dates. Values without a zone are interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, localDateTime, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON accepts options and correct answers in any TextValue shape.
func (q *Question) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID            int64           `json:"id"`
		Type          QuestionType    `json:"type"`
		Text          string          `json:"questionText"`
		Options       json.RawMessage `json:"options"`
		CorrectAnswer TextValue       `json:"correctAnswer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	options, err := DecodeOptions(raw.Options)
	if err != nil {
		return err
	}
	*q = Question{
		ID:            raw.ID,
		Type:          raw.Type,
		Text:          raw.Text,
		Options:       options,
		CorrectAnswer: string(raw.CorrectAnswer),
	}
	return nil
}
