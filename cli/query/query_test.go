package query

import (
	"bytes"
	"flag"
	"testing"
	"time"

	"github.com/nspcc-dev/cmtree/pkg/config"
	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"github.com/nspcc-dev/cmtree/pkg/services/rpcsrv"
	"github.com/nspcc-dev/cmtree/pkg/services/whitelist"
	"github.com/nspcc-dev/cmtree/pkg/util"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"go.uber.org/zap/zaptest"
)

// startTestServer runs a tree service with the given keys preloaded and
// returns its HTTP endpoint.
func startTestServer(t *testing.T, keys ...util.Uint256) string {
	tcfg := config.TreeConfiguration{
		HashFunction: hash.NameSha256,
		Preload:      keys,
	}
	log := zaptest.NewLogger(t)
	wl, err := whitelist.New(tcfg, log)
	require.NoError(t, err)

	rcfg := config.RPC{BasicService: config.BasicService{
		Enabled:   true,
		Addresses: []string{"127.0.0.1:0"},
	}}
	errCh := make(chan error, 2)
	srv := rpcsrv.New(wl, nil, rcfg, tcfg, log, errCh)
	srv.Start()
	t.Cleanup(srv.Shutdown)
	select {
	case err := <-errCh:
		t.Fatalf("RPC server failed to start: %v", err)
	default:
	}
	return "http://" + srv.Addresses()[0]
}

// newContext builds a context the way cli would for the query commands.
// Actions are called directly because cli's own Run exits the process on
// command errors.
func newContext(t *testing.T, endpoint string, args ...string) (*cli.Context, *bytes.Buffer) {
	set := flag.NewFlagSet("flagSet", flag.ContinueOnError)
	set.String("rpc-endpoint", endpoint, "")
	set.Duration("timeout", 10*time.Second, "")
	require.NoError(t, set.Parse(args))
	app := cli.NewApp()
	out := bytes.NewBuffer(nil)
	app.Writer = out
	return cli.NewContext(app, set, nil), out
}

func TestQueryVersion(t *testing.T) {
	url := startTestServer(t)

	ctx, out := newContext(t, url)
	require.NoError(t, queryVersion(ctx))
	require.Contains(t, out.String(), "UserAgent:")
	require.Contains(t, out.String(), hash.NameSha256)
}

func TestQueryRootAndSize(t *testing.T) {
	key := hash.Sha256([]byte("alice"))
	url := startTestServer(t, key)

	ctx, out := newContext(t, url)
	require.NoError(t, queryRoot(ctx))
	require.Contains(t, out.String(), "Root:")
	require.Regexp(t, `Size:\s+1\s`, out.String())
	require.NotContains(t, out.String(), util.Uint256{}.String())

	ctx, out = newContext(t, url)
	require.NoError(t, querySize(ctx))
	require.Equal(t, "1\n", out.String())
}

func TestQueryKey(t *testing.T) {
	member := hash.Sha256([]byte("alice"))
	absent := hash.Sha256([]byte("dave"))
	url := startTestServer(t, member)

	t.Run("member", func(t *testing.T) {
		ctx, out := newContext(t, url, member.String())
		require.NoError(t, queryKey(ctx))
		require.Regexp(t, `Member:\s+true`, out.String())
		require.Contains(t, out.String(), member.String())
	})
	t.Run("non-member", func(t *testing.T) {
		ctx, out := newContext(t, url, absent.String())
		require.NoError(t, queryKey(ctx))
		require.Regexp(t, `Member:\s+false`, out.String())
	})
	t.Run("missing argument", func(t *testing.T) {
		ctx, _ := newContext(t, url)
		require.Error(t, queryKey(ctx))
	})
	t.Run("bad key", func(t *testing.T) {
		ctx, _ := newContext(t, url, "zzz")
		require.Error(t, queryKey(ctx))
	})
}

func TestQueryNoEndpoint(t *testing.T) {
	ctx, _ := newContext(t, "")
	require.Error(t, queryRoot(ctx))
}
