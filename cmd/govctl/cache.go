package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolgate/cache"
	"github.com/jonwraymond/toolgate/governor"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	var (
		configPath string
		logPath    string
	)

	// openLog resolves the log from --log, else from l2_path in --config.
	openLog := func() (*cache.WarmTier, func(), error) {
		path := logPath
		maxBytes := int64(0)
		if path == "" {
			if configPath == "" {
				return nil, nil, errors.New("either --log or --config is required")
			}
			cfg, err := governor.LoadConfig(configPath)
			if err != nil {
				return nil, nil, err
			}
			if cfg.L2Path == "" {
				return nil, nil, fmt.Errorf("%s has no l2_path", configPath)
			}
			path, maxBytes = cfg.L2Path, cfg.L2MaxBytes()
		}

		logger, flush := root.logger()
		warm, err := cache.NewWarmTier(cache.WarmTierConfig{
			Path:     path,
			MaxBytes: maxBytes,
			Logger:   logger,
		})
		if err != nil {
			flush()
			return nil, nil, err
		}
		return warm, func() {
			_ = warm.Close()
			flush()
		}, nil
	}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage a warm tier log",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show warm tier log statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			warm, done, err := openLog()
			if err != nil {
				return err
			}
			defer done()

			records := 0
			keys := make(map[string]struct{})
			err = warm.Scan(cmd.Context(), func(e cache.Entry) bool {
				records++
				keys[e.Key] = struct{}{}
				return true
			})
			if err != nil {
				return err
			}

			stats := warm.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:    %s\n", warm.Path())
			fmt.Fprintf(out, "Bytes:   %d / %d\n", stats.Bytes, warm.MaxBytes())
			fmt.Fprintf(out, "Records: %d\n", records)
			fmt.Fprintf(out, "Keys:    %d\n", len(keys))
			fmt.Fprintf(out, "Corrupt: %d\n", stats.Corrupt)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List records in append order",
		RunE: func(cmd *cobra.Command, args []string) error {
			warm, done, err := openLog()
			if err != nil {
				return err
			}
			defer done()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tWRITTEN\tBYTES")
			err = warm.Scan(cmd.Context(), func(e cache.Entry) bool {
				fmt.Fprintf(w, "%s\t%s\t%d\n", e.Key, e.CreatedAt.UTC().Format(time.RFC3339), len(e.Value))
				return true
			})
			if err != nil {
				return err
			}
			return w.Flush()
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <fingerprint>",
		Short: "Print the latest value stored for a fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			warm, done, err := openLog()
			if err != nil {
				return err
			}
			defer done()

			entry, ok, err := warm.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(entry.Value))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the warm tier log",
		RunE: func(cmd *cobra.Command, args []string) error {
			warm, done, err := openLog()
			if err != nil {
				return err
			}
			defer done()

			if err := warm.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", warm.Path())
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to governor config file")
	cmd.PersistentFlags().StringVar(&logPath, "log", "", "path to the warm tier log (overrides l2_path)")
	cmd.AddCommand(statsCmd, listCmd, getCmd, clearCmd)
	return cmd
}
