// Package util implements the offline helper commands: proof verification
// and inspection, key derivation and address conversion. None of them
// need a running server.
package util

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/nspcc-dev/cmtree/cli/cmdargs"
	"github.com/nspcc-dev/cmtree/pkg/cmt"
	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"github.com/nspcc-dev/cmtree/pkg/encoding/address"
	"github.com/nspcc-dev/cmtree/pkg/util"
	"github.com/urfave/cli"
)

// NewCommands returns 'util' command.
func NewCommands() []cli.Command {
	hashFlag := cli.StringFlag{
		Name:  "hash",
		Usage: "hash function the tree was built with",
		Value: hash.NameSha256,
	}
	verifyFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "root",
			Usage: "root digest to verify against (big-endian hex)",
		},
		cli.StringFlag{
			Name:  "key",
			Usage: "key the proof is about (hex, address or number)",
		},
		cli.StringFlag{
			Name:  "proof",
			Usage: "base64-encoded proof",
		},
		hashFlag,
		cli.IntFlag{
			Name:  "max-proof-length",
			Usage: "maximum accepted number of proof steps",
			Value: cmt.DefaultMaxProofLen,
		},
	}
	return []cli.Command{{
		Name:  "util",
		Usage: "various helper commands",
		Subcommands: []cli.Command{
			{
				Name:      "verify",
				Usage:     "verify a proof against a root without a server",
				UsageText: "util verify --root <hex> --key <key> --proof <base64> [--hash <name>] [--max-proof-length <n>]",
				Description: `Runs the pure proof verification: given a trusted root digest, checks that
   the proof attests the key's membership (or non-membership) in the set the
   root commits to. The command fails for proofs that do not hold.`,
				Action: verifyProof,
				Flags:  verifyFlags,
			},
			{
				Name:      "decode-proof",
				Usage:     "print the contents of a base64-encoded proof",
				UsageText: "util decode-proof <base64>",
				Action:    decodeProof,
			},
			{
				Name:      "hash-key",
				Usage:     "derive a tree key by hashing the given data",
				UsageText: "util hash-key [--hash <name>] [--hex] <data>",
				Action:    hashKey,
				Flags: []cli.Flag{
					hashFlag,
					cli.BoolFlag{
						Name:  "hex",
						Usage: "treat the argument as hex-encoded bytes instead of a string",
					},
				},
			},
			{
				Name:      "address",
				Usage:     "convert a key to its address form and back",
				UsageText: "util address <key> or util address --decode <address>",
				Action:    convertAddress,
				Flags: []cli.Flag{
					cli.StringFlag{
						Name:  "decode",
						Usage: "address to decode into a key",
					},
				},
			},
		},
	}}
}

func verifyProof(ctx *cli.Context) error {
	root, err := util.Uint256DecodeStringBE(ctx.String("root"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid root: %w", err), 1)
	}
	key, err := cmdargs.ParseKey(ctx.String("key"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid key: %w", err), 1)
	}
	p, err := cmt.ProofFromString(ctx.String("proof"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	h, err := hash.ByName(ctx.String("hash"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	ok, err := cmt.VerifyProof(h, ctx.Int("max-proof-length"), root, key, p)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if !ok {
		return cli.NewExitError("proof is INVALID", 1)
	}
	if p.Existence {
		fmt.Fprintln(ctx.App.Writer, "OK: the key is a member of the set")
	} else {
		fmt.Fprintln(ctx.App.Writer, "OK: the key is not a member of the set")
	}
	return nil
}

func decodeProof(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError("proof is missing", 1)
	}
	p, err := cmt.ProofFromString(args[0])
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Key:\t" + p.Key.String() + "\n"))
	_, _ = tw.Write([]byte(fmt.Sprintf("Existence:\t%t\n", p.Existence)))
	if p.Empty {
		_, _ = tw.Write([]byte("EmptyTree:\ttrue\n"))
	} else {
		_, _ = tw.Write([]byte("NodeKey:\t" + p.NodeKey.String() + "\n"))
		_, _ = tw.Write([]byte("LeftDigest:\t" + p.LeftDigest.String() + "\n"))
		_, _ = tw.Write([]byte("RightDigest:\t" + p.RightDigest.String() + "\n"))
		_, _ = tw.Write([]byte("Steps:\t" + strconv.Itoa(len(p.Steps)) + "\n"))
		for i := range p.Steps {
			dir := "left"
			if p.Steps[i].Right {
				dir = "right"
			}
			_, _ = tw.Write([]byte(fmt.Sprintf("%d:\t%s %s %s\n",
				i, p.Steps[i].Key, dir, p.Steps[i].Other)))
		}
	}
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
	return nil
}

func hashKey(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError("data is missing", 1)
	}
	h, err := hash.ByName(ctx.String("hash"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	data := []byte(args[0])
	if ctx.Bool("hex") {
		data, err = hex.DecodeString(args[0])
		if err != nil {
			return cli.NewExitError(fmt.Errorf("invalid hex data: %w", err), 1)
		}
	}
	key := h(data)
	fmt.Fprintln(ctx.App.Writer, key.String())
	fmt.Fprintln(ctx.App.Writer, address.Uint256ToString(key))
	return nil
}

func convertAddress(ctx *cli.Context) error {
	if addr := ctx.String("decode"); addr != "" {
		key, err := address.StringToUint256(addr)
		if err != nil {
			return cli.NewExitError(fmt.Errorf("invalid address: %w", err), 1)
		}
		fmt.Fprintln(ctx.App.Writer, key.String())
		return nil
	}
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError("key is missing", 1)
	}
	key, err := util.Uint256DecodeStringBE(args[0])
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid key: %w", err), 1)
	}
	fmt.Fprintln(ctx.App.Writer, address.Uint256ToString(key))
	return nil
}
