package bitcoinclient

import (
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/fanatid/telescope/internal/errs"
)

// endpoint is a parsed, credential-stripped URL plus the precomputed
// Authorization header value.
type endpoint struct {
	baseURL       string // scheme://host:port, no userinfo, no trailing path
	authorization string // "Basic <base64>", empty if no credentials given
}

// parseEndpoint implements the façade's URL construction rules: scheme must
// be http or https, username/password (if present) are extracted and
// encoded as HTTP Basic credentials, and the credential-stripped URL is kept
// for request construction.
func parseEndpoint(raw string) (endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, errs.Wrap(errs.KindConfiguration, err, "parsing node URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return endpoint{}, errs.New(errs.KindConfiguration, "invalid URL scheme %q, want http or https", u.Scheme)
	}

	var auth string
	if u.User != nil {
		user := u.User.Username()
		pass, _ := u.User.Password()
		creds := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", user, pass)))
		auth = "Basic " + creds
	}

	stripped := *u
	stripped.User = nil
	stripped.Path = ""
	stripped.RawPath = ""
	return endpoint{baseURL: stripped.String(), authorization: auth}, nil
}
