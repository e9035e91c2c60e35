// Package googletest points Google API clients at a local test server.
package googletest

import (
	"net/http"

	"google.golang.org/api/option"
)

// Options points a client at endpoint with no authentication. Pair it with
// an httptest server: Options(srv.URL+"/", srv.Client()).
func Options(endpoint string, hc *http.Client) []option.ClientOption {
	return []option.ClientOption{option.WithEndpoint(endpoint), option.WithHTTPClient(hc)}
}
