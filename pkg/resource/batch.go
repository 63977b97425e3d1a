package resource

import "encoding/json"

// BatchResponse groups batch results by operation. Its JSON form carries a fixed
// "__crudkit_api" flag so clients can tell the payload was produced by this library.
type BatchResponse struct {
	Create []any
	Update []any
	Delete []any
}

// NewBatchResponse returns an empty envelope.
func NewBatchResponse() *BatchResponse {
	return &BatchResponse{}
}

// AddCreated appends a create result.
func (b *BatchResponse) AddCreated(v any) *BatchResponse {
	b.Create = append(b.Create, v)
	return b
}

// AddUpdated appends an update result.
func (b *BatchResponse) AddUpdated(v any) *BatchResponse {
	b.Update = append(b.Update, v)
	return b
}

// AddDeleted appends a delete result.
func (b *BatchResponse) AddDeleted(v any) *BatchResponse {
	b.Delete = append(b.Delete, v)
	return b
}

type batchEnvelope struct {
	Create []any `json:"create"`
	Update []any `json:"update"`
	Delete []any `json:"delete"`
	API    bool  `json:"__crudkit_api"`
}

// MarshalJSON renders missing groups as empty arrays.
func (b BatchResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(batchEnvelope{
		Create: nonNil(b.Create),
		Update: nonNil(b.Update),
		Delete: nonNil(b.Delete),
		API:    true,
	})
}

func nonNil(items []any) []any {
	if items == nil {
		return []any{}
	}
	return items
}
