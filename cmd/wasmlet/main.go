// Command wasmlet loads a .wasm file and calls its exported _start with
// no arguments, wiring stdout/stderr through the WASI fd_write shim.
// This is illustrative only: the decoder and runtime it drives are the
// part of this repository worth reading.
package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wasmlet/wasmlet"
	wasi "github.com/wasmlet/wasmlet/imports/wasi_snapshot_preview1"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	log := logrus.New()
	log.SetOutput(stderr)

	cmd := &cobra.Command{
		Use:           "wasmlet <path-to-wasm>",
		Short:         "Run a WebAssembly module's _start export",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return run(args[0], stdout, stderr, log)
		},
	}
	return cmd
}

func run(path string, stdout, stderr io.Writer, log *logrus.Logger) error {
	image, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Error("reading wasm file")
		return err
	}

	snap := wasi.New(stdout, stderr)
	r, err := wasmlet.InstantiateWithWASI(image, snap)
	if err != nil {
		log.WithError(err).WithField("path", path).Error("instantiating module")
		return err
	}

	if _, err := r.Call("_start"); err != nil {
		log.WithError(err).Error("calling _start")
		return err
	}
	return nil
}
