package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/query"
	"github.com/nimburion/crudkit/pkg/server/router"
)

func TestMapError(t *testing.T) {
	ctx := logger.ContextWithRequestID(context.Background(), "req-123")
	_, parseErr := query.ParseFilter("age", "between:1")

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantError   string
		wantCode    string
		wantMessage string
		wantDetail  string
	}{
		{
			name:        "validation",
			err:         apperror.Validation("invalid input", map[string]interface{}{"field": "title"}),
			wantStatus:  http.StatusBadRequest,
			wantError:   "validation_error",
			wantCode:    "validation.failed",
			wantMessage: "invalid input",
			wantDetail:  "field",
		},
		{
			name:        "not found",
			err:         apperror.NotFound("note 7 not found"),
			wantStatus:  http.StatusNotFound,
			wantError:   "not_found",
			wantCode:    "resource.not_found",
			wantMessage: "note 7 not found",
		},
		{
			name:       "wrapped unauthorized",
			err:        fmt.Errorf("read: %w", apperror.Unauthorized("denied")),
			wantStatus: http.StatusUnauthorized,
			wantError:  "unauthorized",
			wantCode:   "auth.unauthorized",
		},
		{
			name:       "conflict",
			err:        apperror.Conflict("duplicate", nil),
			wantStatus: http.StatusConflict,
			wantError:  "conflict",
		},
		{
			name:       "status inferred from code",
			err:        apperror.New("auth.forbidden", nil, nil),
			wantStatus: http.StatusForbidden,
			wantError:  "forbidden",
		},
		{
			name:        "internal hides message",
			err:         apperror.Internal("db password leaked in message", errors.New("boom")),
			wantStatus:  http.StatusInternalServerError,
			wantError:   "internal_server_error",
			wantMessage: "an unexpected error occurred",
		},
		{
			name:        "filter parse error",
			err:         parseErr,
			wantStatus:  http.StatusBadRequest,
			wantError:   "validation_error",
			wantCode:    "validation.invalid_query",
			wantDetail:  "key",
		},
		{
			name:       "oversized body",
			err:        &router.BindError{Status: http.StatusRequestEntityTooLarge, Reason: "request body too large"},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  "payload_too_large",
			wantCode:   "validation.invalid_body",
		},
		{
			name:        "unknown error",
			err:         errors.New("socket closed"),
			wantStatus:  http.StatusInternalServerError,
			wantError:   "internal_server_error",
			wantMessage: "an unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := MapError(ctx, tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
			if tt.wantCode != "" && body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && body.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Message, tt.wantMessage)
			}
			if tt.wantDetail != "" {
				if _, ok := body.Details[tt.wantDetail]; !ok {
					t.Errorf("details %v missing %q", body.Details, tt.wantDetail)
				}
			}
			if body.RequestID != "req-123" {
				t.Errorf("request_id = %q", body.RequestID)
			}
		})
	}
}

func TestMapError_FilterParseDetails(t *testing.T) {
	_, err := query.ParseFilter("age", `eq:"open`)
	_, body := MapError(context.Background(), err)
	if body.Details["key"] != "age" {
		t.Errorf("details.key = %v, want age", body.Details["key"])
	}
	if body.RequestID != "" {
		t.Errorf("request_id = %q, want empty without a request id", body.RequestID)
	}
}
