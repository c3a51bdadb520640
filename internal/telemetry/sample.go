// Package telemetry defines the sample envelope published to downstream
// consumers and the error taxonomy shared by the streaming components.
package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Reserved envelope keys. Channel fields may not reuse them.
const (
	KeyStreamID  = "stream_id"
	KeyTimestamp = "timestamp"
)

// Field is one named numeric value carried by a Sample.
type Field struct {
	Name  string
	Value float64
}

// Sample is one observation on one logical channel.
// Samples are created per emission and not retained after publication.
type Sample struct {
	StreamID  string
	Timestamp float64 // seconds
	Fields    []Field
}

// Value returns the named field value.
func (s Sample) Value(name string) (float64, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// MarshalJSON encodes the sample as a flat object whose keys are exactly
// stream_id, timestamp and the field names, in that order.
func (s Sample) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeMember(&buf, KeyStreamID, s.StreamID); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeMember(&buf, KeyTimestamp, s.Timestamp); err != nil {
		return nil, err
	}
	for _, f := range s.Fields {
		if f.Name == KeyStreamID || f.Name == KeyTimestamp {
			return nil, fmt.Errorf("field name %q collides with envelope key", f.Name)
		}
		buf.WriteByte(',')
		if err := writeMember(&buf, f.Name, f.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, v interface{}) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}

// UnmarshalJSON decodes a flat envelope. Non-numeric members other than
// stream_id are rejected. Field order follows key order in the input.
func (s *Sample) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("sample must be a JSON object")
	}

	out := Sample{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		switch key {
		case KeyStreamID:
			if err := dec.Decode(&out.StreamID); err != nil {
				return fmt.Errorf("decode stream_id: %w", err)
			}
		default:
			var n json.Number
			if err := dec.Decode(&n); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			v, err := n.Float64()
			if err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			if key == KeyTimestamp {
				out.Timestamp = v
			} else {
				out.Fields = append(out.Fields, Field{Name: key, Value: v})
			}
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}
