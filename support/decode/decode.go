package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/minio/blake2b-simd"
	"github.com/urfave/cli/v2"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/builtin/timelock"
)

var actionDecodeCmd = &cli.Command{
	Name:        "action",
	Description: "decode a timelock action from hex CBOR bytes",
	Action: func(ctx *cli.Context) error {
		return decodeAction(ctx.App.Writer, ctx.Args().First())
	},
}

var idDecodeCmd = &cli.Command{
	Name:        "id",
	Description: "decode a multibase action ID to hex",
	Action: func(ctx *cli.Context) error {
		return decodeActionID(ctx.App.Writer, ctx.Args().First())
	},
}

var methodCmd = &cli.Command{
	Name:        "method",
	Description: "print the method number addressed by a function signature",
	Action: func(ctx *cli.Context) error {
		return printMethodNum(ctx.App.Writer, ctx.Args().First())
	},
}

var intDecodeCmd = &cli.Command{
	Name:        "int",
	Description: "decode big.Int from hex bytes",
	Action: func(ctx *cli.Context) error {
		return decodeInt(ctx.App.Writer, ctx.Args().First())
	},
}

func main() {
	app := &cli.App{
		Name:        "decode",
		Usage:       "Decode a hex encoded data structure",
		Description: "Decode a hex encoded data structure",
		Commands: []*cli.Command{
			actionDecodeCmd,
			idDecodeCmd,
			methodCmd,
			intDecodeCmd,
		},
	}
	sort.Sort(cli.CommandsByName(app.Commands))
	for _, c := range app.Commands {
		sort.Sort(cli.FlagsByName(c.Flags))
	}
	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func decodeAction(w io.Writer, hexString string) error {
	b, err := hex.DecodeString(strings.TrimPrefix(hexString, "0x"))
	if err != nil {
		return err
	}

	var action timelock.Action
	if err := action.UnmarshalCBOR(bytes.NewReader(b)); err != nil {
		return fmt.Errorf("not an action: %w", err)
	}
	id, err := timelock.ComputeActionID(&action, blake2b.Sum256)
	if err != nil {
		return err
	}
	method, err := builtin.GenerateSignatureMethodNum(action.Signature)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "id:        %s\n", id)
	fmt.Fprintf(w, "target:    %s\n", action.Target)
	fmt.Fprintf(w, "value:     %s\n", action.Value)
	fmt.Fprintf(w, "signature: %s (method %d)\n", action.Signature, method)
	fmt.Fprintf(w, "data:      %x\n", action.Data)
	fmt.Fprintf(w, "timestamp: %d\n", action.Timestamp)
	return nil
}

func decodeActionID(w io.Writer, s string) error {
	id, err := timelock.ParseActionID(s)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%x\n", id[:])
	return nil
}

func printMethodNum(w io.Writer, signature string) error {
	method, err := builtin.GenerateSignatureMethodNum(signature)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, method)
	return nil
}

func decodeInt(w io.Writer, hexString string) error {
	b, err := hex.DecodeString(hexString)
	if err != nil {
		return err
	}

	i, err := big.FromBytes(b)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, i)
	return nil
}
