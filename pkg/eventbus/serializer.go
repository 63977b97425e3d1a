package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Content types set on published messages.
const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/protobuf"
)

// Common serialization errors
var (
	// ErrInvalidData is returned when the data cannot be serialized or deserialized
	ErrInvalidData = errors.New("invalid data for serialization")

	// ErrUnsupportedType is returned when the type is not supported by the serializer
	ErrUnsupportedType = errors.New("unsupported type for serialization")
)

// Serializer converts event payloads to bytes and back.
type Serializer interface {
	Serialize(v interface{}) ([]byte, error)

	// Deserialize decodes data into target, which must be a pointer.
	Deserialize(data []byte, target interface{}) error

	// ContentType returns the MIME type for this serializer.
	ContentType() string
}

// SerializerFor returns the serializer registered under format ("json" or "protobuf").
// An empty format selects JSON.
func SerializerFor(format string) (Serializer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return NewJSONSerializer(), nil
	case "protobuf", "proto":
		return NewProtobufSerializer(), nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrUnsupportedType, format)
	}
}

// JSONSerializer encodes envelopes with encoding/json.
type JSONSerializer struct{}

func NewJSONSerializer() *JSONSerializer { return &JSONSerializer{} }

func (*JSONSerializer) Serialize(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value", ErrInvalidData)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return data, nil
}

func (*JSONSerializer) Deserialize(data []byte, target interface{}) error {
	switch {
	case target == nil:
		return fmt.Errorf("%w: nil target", ErrInvalidData)
	case len(data) == 0:
		return fmt.Errorf("%w: empty payload", ErrInvalidData)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return nil
}

func (*JSONSerializer) ContentType() string { return ContentTypeJSON }
