// Package factory selects the router adapter named by config.Config.RouterType.
package factory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nimburion/crudkit/pkg/config"
	"github.com/nimburion/crudkit/pkg/server/router"
	ginadapter "github.com/nimburion/crudkit/pkg/server/router/gin"
	gorillaadapter "github.com/nimburion/crudkit/pkg/server/router/gorilla"
	nethttpadapter "github.com/nimburion/crudkit/pkg/server/router/nethttp"
)

// ErrUnsupportedRouter is wrapped by NewRouter for unknown router types.
var ErrUnsupportedRouter = errors.New("unsupported router type")

// NewRouter returns a fresh router of routerType. Matching ignores case and surrounding space;
// an empty type selects net/http.
func NewRouter(routerType string) (router.Router, error) {
	switch strings.ToLower(strings.TrimSpace(routerType)) {
	case "", config.RouterTypeNetHTTP:
		return nethttpadapter.NewRouter(), nil
	case config.RouterTypeGin:
		return ginadapter.NewRouter(), nil
	case config.RouterTypeGorilla:
		return gorillaadapter.NewRouter(), nil
	}
	return nil, fmt.Errorf("%w %q (one of %s)", ErrUnsupportedRouter, routerType, strings.Join(config.RouterTypes, ", "))
}
