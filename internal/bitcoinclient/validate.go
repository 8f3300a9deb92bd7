package bitcoinclient

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fanatid/telescope/internal/errs"
	"github.com/fanatid/telescope/internal/shutdown"
)

// expectedUseragent maps coin name to the useragent the validation protocol
// requires (table in §4.B.3).
var expectedUseragent = map[string]string{
	"bitcoin": "Satoshi",
}

// minVersionStr is the minimum node version the validation protocol
// requires, per coin, parsed lazily in checkVersion (semver.Version isn't a
// safe package-level var to construct via a panicking helper in v1 of the
// library).
var minVersionStr = map[string]string{
	"bitcoin": "0.19.0",
}

var subversionRE = regexp.MustCompile(`^/([A-Za-z ]+):([0-9.]+)/$`)

const initWaitBackoff = 10 * time.Millisecond
const initWaitLogInterval = 3 * time.Second

// Validate runs the four-check validation protocol described in §4.B:
// initialization wait (gating), then chain match, version match, and
// cross-client consistency concurrently. It races against shutdown.Wait.
func (c *Client) Validate(ctx context.Context, coin, chain string, latch *shutdown.Latch, log *logrus.Entry) error {
	if err := c.waitForInitialization(ctx, latch, log); err != nil {
		return err
	}

	info, err := c.BlockchainInfo(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.checkChain(info, chain) })
	g.Go(func() error { return c.checkVersion(gctx, coin) })
	g.Go(func() error { return c.checkCrossClient(gctx, info) })
	return g.Wait()
}

// waitForInitialization repeatedly calls BlockchainInfo with a 10ms backoff
// while the node reports "warming up" (RPC code -28). Any other error
// aborts immediately; a tripped shutdown aborts with errs.Cancelled.
func (c *Client) waitForInitialization(ctx context.Context, latch *shutdown.Latch, log *logrus.Entry) error {
	var lastLog time.Time
	var lastMsg string

	// limiter paces retries at initWaitBackoff instead of a bare
	// time.Sleep loop, so a node that flaps between warming-up and ready
	// can't cause a tight retry burst.
	limiter := rate.NewLimiter(rate.Every(initWaitBackoff), 1)

	for {
		if err := latch.Check(); err != nil {
			return err
		}
		if err := limiter.Wait(ctx); err != nil {
			return errs.Wrap(errs.KindCancelled, err, "waiting for initialization retry pacing")
		}

		_, err := c.BlockchainInfo(ctx)
		if err == nil {
			return nil
		}

		code, ok := rpcCode(err)
		if !ok || code != rpcCodeWarmingUp {
			return err
		}

		msg := err.Error()
		if time.Since(lastLog) >= initWaitLogInterval || msg != lastMsg {
			log.WithField("message", msg).Info("node still warming up, waiting")
			lastLog = time.Now()
			lastMsg = msg
		}
	}
}

// checkChain enforces that the configured chain name equals the node's
// reported chain.
func (c *Client) checkChain(info BlockchainInfo, chain string) error {
	if info.Chain != chain {
		return errs.New(errs.KindSemantic, "chain mismatch: configured %q, node reports %q", chain, info.Chain)
	}
	return nil
}

// checkVersion parses NetworkInfo.Subversion and enforces the useragent and
// minimum-version requirements for coin.
func (c *Client) checkVersion(ctx context.Context, coin string) error {
	expected, ok := expectedUseragent[coin]
	if !ok {
		return errs.New(errs.KindConfiguration, "no useragent configured for coin %q", coin)
	}
	minStr, ok := minVersionStr[coin]
	if !ok {
		return errs.New(errs.KindConfiguration, "no minimum version configured for coin %q", coin)
	}
	min, err := semver.NewVersion(minStr)
	if err != nil {
		return errs.Wrap(errs.KindConfiguration, err, "parsing minimum version for coin %q", coin)
	}

	netInfo, err := c.NetworkInfo(ctx)
	if err != nil {
		return err
	}

	m := subversionRE.FindStringSubmatch(netInfo.Subversion)
	if m == nil {
		return errs.New(errs.KindSemantic, "invalid subversion format %q", netInfo.Subversion)
	}
	useragent, versionStr := m[1], m[2]
	if useragent != expected {
		return errs.New(errs.KindSemantic, "unexpected useragent %q, want %q", useragent, expected)
	}

	normalized := truncateToTwoDots(versionStr)
	version, err := semver.NewVersion(normalized)
	if err != nil {
		return errs.New(errs.KindSemantic, "invalid version %q: %v", versionStr, err)
	}
	if version.LessThan(min) {
		return errs.New(errs.KindSemantic, "node version %s is below minimum %s", version, min)
	}
	return nil
}

// truncateToTwoDots drops trailing dot-separated components until the
// string contains at most two dots (three components), so a 4-component
// bitcoind version like "22.0.0.1" parses as valid semver "22.0.0".
func truncateToTwoDots(v string) string {
	for strings.Count(v, ".") > 2 {
		i := strings.LastIndex(v, ".")
		v = v[:i]
	}
	return v
}

// checkCrossClient enforces that, when a REST endpoint is configured, RPC
// and REST report the same BlockchainInfo (same chain tip).
func (c *Client) checkCrossClient(ctx context.Context, rpcInfo BlockchainInfo) error {
	if c.rest == nil {
		return nil
	}
	restInfo, err := c.BlockchainInfoREST(ctx)
	if err != nil {
		return err
	}
	if restInfo.Chain != rpcInfo.Chain || restInfo.Blocks != rpcInfo.Blocks || !restInfo.BestHash.Equal(rpcInfo.BestHash) {
		return errs.New(errs.KindSemantic, "rpc/rest client mismatch: rpc=%+v rest=%+v", rpcInfo, restInfo)
	}
	return nil
}
