// Package token pulls the raw bearer credential and the requested target
// account out of an inbound request.
package token

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
)

// MaxSafeID is the largest account id accepted from request parameters
// (2^53-1, the largest integer every JSON client can represent exactly).
const MaxSafeID int64 = 1<<53 - 1

// DefaultAccountIDParams are the query parameter names consulted, in order,
// when no custom list is configured.
var DefaultAccountIDParams = []string{"accountId", "account_id"}

// ExtractBearer returns the token from an Authorization header value. The
// header must be exactly "Bearer <token>".
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", autherr.Authentication("Missing Authorization header")
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", autherr.Authentication("Invalid Authorization header format. Expected: Bearer <token>")
	}
	return parts[1], nil
}

// ExtractAccountID returns the first valid account id found under names.
// Values that are not positive integers within MaxSafeID are skipped, so a
// bad parameter silently falls back to self-access.
func ExtractAccountID(values url.Values, names []string) (int64, bool) {
	if len(names) == 0 {
		names = DefaultAccountIDParams
	}
	for _, name := range names {
		v := values.Get(name)
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || id <= 0 || id > MaxSafeID {
			continue
		}
		return id, true
	}
	return 0, false
}
