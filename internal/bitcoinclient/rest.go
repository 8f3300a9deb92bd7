package bitcoinclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/fanatid/telescope/internal/errs"
)

const (
	restConnectTimeout     = 250 * time.Millisecond
	restRequestTimeout     = 30 * time.Second
	restChainInfoTimeout   = 250 * time.Millisecond // hot validation path, §5
)

// restClient is the optional REST sub-client used only when the coin
// supports it (e.g. bitcoind's -rest surface). A 404 means "not found" and
// is reported as absent, not as an error.
type restClient struct {
	ep   endpoint
	http *http.Client
}

func newRESTClient(ep endpoint) *restClient {
	return &restClient{
		ep: ep,
		http: &http.Client{
			Timeout: restRequestTimeout,
			Transport: &http.Transport{
				DialContext:        (&net.Dialer{Timeout: restConnectTimeout}).DialContext,
				DisableCompression: true,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// get issues a GET against path, returning (body, true, nil) on 200,
// (nil, false, nil) on 404, and (nil, false, err) on any other outcome.
func (c *restClient) get(ctx context.Context, path string, timeout time.Duration) ([]byte, bool, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	u := fmt.Sprintf("%s/%s", c.ep.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, errs.Wrap(errs.KindTransport, err, "building rest request %s", path)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ep.authorization != "" {
		req.Header.Set("Authorization", c.ep.authorization)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, errs.Wrap(errs.KindTransport, err, "calling rest %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, errs.Wrap(errs.KindTransport, err, "reading rest response %s", path)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, errs.New(errs.KindProtocol, "rest %s: unexpected status %d: %s", path, resp.StatusCode, body)
	}
}
