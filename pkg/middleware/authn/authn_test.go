package authn

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nimburion/crudkit/pkg/auth"
	"github.com/nimburion/crudkit/pkg/observability/logger/loggertest"
	"github.com/nimburion/crudkit/pkg/server/router"
	"github.com/nimburion/crudkit/pkg/server/router/gorilla"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestAuthenticate(t *testing.T) {
	validator, err := auth.NewHMACValidator(secret, auth.WithIssuer("crudkit"))
	if err != nil {
		t.Fatalf("NewHMACValidator() error = %v", err)
	}
	signer, err := auth.NewHMACSigner(secret, "crudkit", "")
	if err != nil {
		t.Fatalf("NewHMACSigner() error = %v", err)
	}
	good, err := signer.Sign(auth.Claims{Subject: "alice", Scopes: []string{"notes:read"}}, time.Minute)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"iss": "crudkit",
		"iat": jwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
		"exp": jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	rec := loggertest.New()
	r := gorilla.NewRouter()
	r.Use(Authenticate(validator, rec))
	r.GET("/me", func(c router.Context) error {
		fromRequest := auth.GetClaims(c.Request().Context())
		fromContext, _ := c.Get(ClaimsKey).(*auth.Claims)
		if fromRequest == nil || fromRequest != fromContext {
			t.Error("claims should be on both the request and router context")
		}
		return c.JSON(http.StatusOK, map[string]string{"sub": fromRequest.Subject})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + good, http.StatusOK},
		{"lowercase scheme", "bearer " + good, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + good, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			var body map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if tt.want == http.StatusOK && body["sub"] != "alice" {
				t.Errorf("sub = %v", body["sub"])
			}
			if tt.want == http.StatusUnauthorized && body["error"] != "unauthorized" {
				t.Errorf("error = %v", body["error"])
			}
		})
	}

	if _, ok := rec.Find("token rejected"); !ok {
		t.Error("rejected tokens should be logged")
	}
}
