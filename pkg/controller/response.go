package controller

import (
	"encoding/json"
	"fmt"

	"github.com/nimburion/crudkit/pkg/resource"
)

// Project reduces v to the requested top-level JSON fields. An empty selection returns v
// unchanged, as do values that do not encode to a JSON object. Unknown names are ignored.
func Project(v interface{}, fields []string) (interface{}, error) {
	if len(fields) == 0 || v == nil {
		return v, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode for projection: %w", err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return v, nil
	}

	out := make(map[string]json.RawMessage, len(fields))
	for _, field := range fields {
		if value, ok := obj[field]; ok {
			out[field] = value
		}
	}
	return out, nil
}

// projectedPage mirrors resource.Page with projected items.
type projectedPage struct {
	Items      []interface{} `json:"items"`
	TotalCount int64         `json:"total_count"`
	PageNo     int           `json:"page_no"`
	PageSize   int           `json:"page_size"`
}

// ProjectPage applies Project to every item of page.
func ProjectPage[T any](page resource.Page[T], fields []string) (interface{}, error) {
	if len(fields) == 0 {
		if page.Items == nil {
			page.Items = []T{}
		}
		return page, nil
	}

	out := projectedPage{
		Items:      make([]interface{}, 0, len(page.Items)),
		TotalCount: page.TotalCount,
		PageNo:     page.PageNo,
		PageSize:   page.PageSize,
	}
	for i := range page.Items {
		item, err := Project(&page.Items[i], fields)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}
