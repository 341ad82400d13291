// Package query implements the CLI commands that talk to a running tree
// service node.
package query

import (
	"bytes"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/nspcc-dev/cmtree/cli/cmdargs"
	"github.com/nspcc-dev/cmtree/cli/options"
	"github.com/nspcc-dev/cmtree/pkg/cmt"
	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"github.com/nspcc-dev/cmtree/pkg/encoding/address"
	"github.com/urfave/cli"
)

// NewCommands returns 'query' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:  "query",
		Usage: "query the tree service node",
		Subcommands: []cli.Command{
			{
				Name:   "version",
				Usage:  "query the server version and tree parameters",
				Action: queryVersion,
				Flags:  options.RPC,
			},
			{
				Name:   "root",
				Usage:  "query the current root of the key set",
				Action: queryRoot,
				Flags:  options.RPC,
			},
			{
				Name:   "size",
				Usage:  "query the number of keys in the set",
				Action: querySize,
				Flags:  options.RPC,
			},
			{
				Name:      "key",
				Usage:     "query key membership along with its proof",
				UsageText: "query key <key> [-r <endpoint>]",
				Description: `Queries the key status on the server and fetches a proof for it. The proof
   is checked locally against the returned root using the tree parameters
   reported by the server, so a lying server is detected as long as the root
   itself is trusted.`,
				Action: queryKey,
				Flags:  options.RPC,
			},
		},
	}}
}

func queryVersion(ctx *cli.Context) error {
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	v, err := c.GetVersion()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("UserAgent:\t" + v.UserAgent + "\n"))
	_, _ = tw.Write([]byte("HashFunction:\t" + v.HashFunction + "\n"))
	_, _ = tw.Write([]byte("MaxProofLength:\t" + strconv.Itoa(v.MaxProofLength) + "\n"))
	if v.SimpleTreeDepth > 0 {
		_, _ = tw.Write([]byte("SimpleTreeDepth:\t" + strconv.Itoa(v.SimpleTreeDepth) + "\n"))
	}
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
	return nil
}

func queryRoot(ctx *cli.Context) error {
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	r, err := c.GetRoot()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Root:\t" + r.Root.String() + "\n"))
	_, _ = tw.Write([]byte("Size:\t" + strconv.Itoa(r.Size) + "\n"))
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
	return nil
}

func querySize(ctx *cli.Context) error {
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	size, err := c.GetSize()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, size)
	return nil
}

func queryKey(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError("key is missing", 1)
	}
	key, err := cmdargs.ParseKey(args[0])
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid key: %w", err), 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	v, err := c.GetVersion()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	h, err := hash.ByName(v.HashFunction)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("server uses an unsupported hash: %w", err), 1)
	}
	p, err := c.GetProof(key)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	ok, err := cmt.VerifyProof(h, v.MaxProofLength, p.Root, key, p.Proof)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("server returned a bad proof: %w", err), 1)
	}
	if !ok {
		return cli.NewExitError("server returned a proof that does not verify", 1)
	}

	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Key:\t" + key.String() + "\n"))
	_, _ = tw.Write([]byte("Address:\t" + address.Uint256ToString(key) + "\n"))
	_, _ = tw.Write([]byte(fmt.Sprintf("Member:\t%t\n", p.Existence)))
	_, _ = tw.Write([]byte("Root:\t" + p.Root.String() + "\n"))
	_, _ = tw.Write([]byte("Proof:\t" + p.Proof.String() + "\n"))
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
	return nil
}
