// Command govctl inspects toolgate warm tier logs, computes request
// fingerprints and validates governor configuration files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonwraymond/toolgate/observe"
)

var version = "dev"

type rootOptions struct {
	verbose bool
}

// logger returns a development zap logger when --verbose is set.
func (o *rootOptions) logger() (observe.Logger, func()) {
	if !o.verbose {
		return observe.NewNoopLogger(), func() {}
	}
	z, err := zap.NewDevelopment()
	if err != nil {
		return observe.NewNoopLogger(), func() {}
	}
	return observe.NewZapLogger(z), func() { _ = z.Sync() }
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "govctl",
		Short:         "govctl - inspect toolgate caches and configuration",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log warnings to stderr")

	root.AddCommand(
		newFingerprintCmd(),
		newCacheCmd(opts),
		newConfigCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
