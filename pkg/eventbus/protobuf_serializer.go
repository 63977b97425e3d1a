package eventbus

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtobufSerializer implements the Serializer interface using Protocol Buffers.
// proto.Message values are marshaled directly. Any other value is converted through its JSON
// form into a google.protobuf.Struct, so plain entity envelopes can travel as protobuf.
type ProtobufSerializer struct{}

// NewProtobufSerializer creates a new Protocol Buffers serializer.
func NewProtobufSerializer() *ProtobufSerializer {
	return &ProtobufSerializer{}
}

// Serialize converts v to protobuf bytes.
func (s *ProtobufSerializer) Serialize(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: cannot serialize nil value", ErrInvalidData)
	}

	msg, ok := v.(proto.Message)
	if !ok {
		st, err := toStruct(v)
		if err != nil {
			return nil, err
		}
		msg = st
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protobuf serialization failed: %w", err)
	}

	return data, nil
}

// Deserialize decodes protobuf bytes into target. Targets that are not proto.Message are
// filled from a google.protobuf.Struct through JSON.
func (s *ProtobufSerializer) Deserialize(data []byte, target interface{}) error {
	if target == nil {
		return fmt.Errorf("%w: target cannot be nil", ErrInvalidData)
	}

	if msg, ok := target.(proto.Message); ok {
		// Empty data is the zero message.
		if len(data) == 0 {
			proto.Reset(msg)
			return nil
		}
		if err := proto.Unmarshal(data, msg); err != nil {
			return fmt.Errorf("protobuf deserialization failed: %w", err)
		}
		return nil
	}

	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return fmt.Errorf("protobuf deserialization failed: %w", err)
	}
	raw, err := st.MarshalJSON()
	if err != nil {
		return fmt.Errorf("protobuf deserialization failed: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	return nil
}

// ContentType returns the MIME type for Protocol Buffers serialization.
func (s *ProtobufSerializer) ContentType() string {
	return ContentTypeProtobuf
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: value must encode as a JSON object", ErrUnsupportedType)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	return st, nil
}
