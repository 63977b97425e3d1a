package contract

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/nimburion/crudkit/pkg/server/router"
	nethttpadapter "github.com/nimburion/crudkit/pkg/server/router/nethttp"
)

func TestPerformRequestSendsBodyAndContentType(t *testing.T) {
	r := nethttpadapter.NewRouter()
	r.POST("/echo", func(c router.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, c.Request().Header.Get("Content-Type")+"|"+string(body))
	})

	tests := []struct {
		name        string
		body        io.Reader
		contentType string
		want        string
	}{
		{name: "json", body: strings.NewReader(`{"title":"a"}`), contentType: "application/json", want: `application/json|{"title":"a"}`},
		{name: "no body and no content type", want: "|"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := performRequest(r, http.MethodPost, "/echo", tt.body, tt.contentType)
			if res.Code != http.StatusOK || res.Body.String() != tt.want {
				t.Fatalf("got %d %q, want 200 %q", res.Code, res.Body.String(), tt.want)
			}
		})
	}
}
