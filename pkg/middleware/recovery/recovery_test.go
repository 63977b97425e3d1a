package recovery

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nimburion/crudkit/pkg/middleware/requestid"
	"github.com/nimburion/crudkit/pkg/observability/logger/loggertest"
	"github.com/nimburion/crudkit/pkg/server/router"
	"github.com/nimburion/crudkit/pkg/server/router/gin"
)

func TestRecovery_PanicBecomes500(t *testing.T) {
	rec := loggertest.New()
	r := gin.NewRouter()
	r.Use(requestid.RequestID(), Recovery(rec))
	r.GET("/boom", func(router.Context) error { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(requestid.RequestIDHeader, "req-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["error"] != "internal_server_error" || body["request_id"] != "req-7" {
		t.Errorf("body = %v", body)
	}
	if strings.Contains(w.Body.String(), "kaboom") {
		t.Error("panic value must not leak to the client")
	}

	entry, ok := rec.Find("panic recovered")
	if !ok {
		t.Fatal("expected panic to be logged")
	}
	if entry.Level != "error" || entry.Fields["panic"] != "kaboom" || entry.Fields["request_id"] != "req-7" {
		t.Errorf("entry = %+v", entry)
	}
	if stack, _ := entry.Fields["stack"].(string); !strings.Contains(stack, "goroutine") {
		t.Error("expected stack trace in log entry")
	}
}

func TestRecovery_AfterPartialWrite(t *testing.T) {
	r := gin.NewRouter()
	r.Use(Recovery(nil))
	r.GET("/partial", func(c router.Context) error {
		c.Response().WriteHeader(http.StatusAccepted)
		panic(errors.New("late"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/partial", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want the already written 202", w.Code)
	}
}

func TestRecovery_PassThrough(t *testing.T) {
	r := gin.NewRouter()
	r.Use(Recovery(nil))
	r.GET("/ok", func(c router.Context) error { return c.String(http.StatusOK, "fine") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusOK || w.Body.String() != "fine" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestRecovery_AbortHandlerIsRepanicked(t *testing.T) {
	h := Recovery(nil)(func(router.Context) error { panic(http.ErrAbortHandler) })
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	_ = h(nil)
}
