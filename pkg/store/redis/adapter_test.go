package redis

import (
	"testing"
	"time"

	"github.com/nimburion/crudkit/pkg/observability/logger"
)

func TestNewAdapter_InvalidURL(t *testing.T) {
	_, err := NewAdapter(Config{
		URL:              "invalid://url",
		MaxConns:         10,
		OperationTimeout: 5 * time.Second,
	}, logger.NewNop())
	if err == nil {
		t.Error("Expected error for invalid URL, got nil")
	}
}

func TestNewAdapter_EmptyURL(t *testing.T) {
	_, err := NewAdapter(Config{}, logger.NewNop())
	if err == nil {
		t.Fatal("Expected error for empty URL, got nil")
	}
	if err.Error() != "redis URL is required" {
		t.Errorf("Expected 'redis URL is required' error, got: %v", err)
	}
}

func TestNewAdapter_Unreachable(t *testing.T) {
	_, err := NewAdapter(Config{URL: "redis://127.0.0.1:1/0"}, logger.NewNop())
	if err == nil {
		t.Fatal("expected ping error for unreachable server")
	}
}
