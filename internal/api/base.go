// Package api implements the row-level wire calls against the hosted backend:
// a PostgREST-style /rest/v1/<table> surface with eq./neq. column filters and
// Prefer headers, plus the /auth/v1 session endpoints. Functions are free
// functions taking the HTTP client and base URL so the SDK core stays the
// single owner of transport configuration.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	apierrors "github.com/heartlink/heartlink-client/internal/errors"
)

// HTTPClient interface for dependency injection.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Prefer header values understood by the backend.
const (
	preferReturn = "return=representation"
	preferMerge  = "resolution=merge-duplicates,return=representation"
	preferCount  = "count=exact"
)

// restURL builds /rest/v1/<table>?<filters>. Filters are raw PostgREST
// operator expressions ("eq.<val>", "neq.<val>", "order" etc.); values are
// query-escaped by url.Values.
func restURL(baseURL, table string, q url.Values) string {
	u := strings.TrimRight(baseURL, "/") + "/rest/v1/" + table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// doJSON performs one request and decodes the response body into out (when
// out is non-nil). Non-2xx statuses become classified errors; transport
// failures become recoverable network errors.
func doJSON(ctx context.Context, hc HTTPClient, method, rawURL string, body any, prefer string, out any, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return apierrors.NewNetworkError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apierrors.NewHTTPError(resp.StatusCode, string(b), op)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// one unwraps the single-row convention: the backend answers row reads and
// return=representation writes with a JSON array.
func one[T any](rows []T, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errNotFound()
	}
	return &rows[0], nil
}
