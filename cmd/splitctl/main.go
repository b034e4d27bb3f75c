package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kwonwoo078/presto/connector/app"
	"github.com/kwonwoo078/presto/pkg/config"
	"github.com/kwonwoo078/presto/pkg/models/predicate"
	"github.com/kwonwoo078/presto/pkg/models/shards"
	"github.com/kwonwoo078/presto/pkg/spi"
	"github.com/kwonwoo078/presto/pkg/storelog"
)

var (
	cfgPath   string
	logLevel  string
	prettyLog bool

	tableID     int64
	bucketCount int
	deleteScan  bool
	batchSize   int
)

var rootCmd = &cobra.Command{
	Use:   "splitctl --config `path-to-config`",
	Short: "enumerate shard splits and serve connector metrics",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgPath != "" {
			cfgStr, err := config.LoadConnectorCfg(cfgPath)
			if err != nil {
				return err
			}
			storelog.Zero.Debug().Str("config", cfgStr).Msg("loaded config")
		}
		cfg := config.ConnectorConfig()
		applyFlags(cmd, cfg)
		storelog.ReloadLogger(cfg.LogFile, cfg.LogLevel, cfg.PrettyLogging)
		return nil
	},
}

// applyFlags lets explicitly passed flags override the config file.
func applyFlags(cmd *cobra.Command, cfg *config.Connector) {
	if cmd.Flags().Changed("pretty-log") {
		cfg.PrettyLogging = prettyLog
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("batch") {
		cfg.DefaultBatchSize = batchSize
	}
}

var splitsCmd = &cobra.Command{
	Use:   "splits",
	Short: "print every split of a table scan as json lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := app.NewConnector(ctx, config.ConnectorConfig())
		if err != nil {
			return err
		}
		defer conn.Close()

		table := &shards.TableHandle{
			ConnectorID: config.ConnectorConfig().ConnectorID,
			TableID:     tableID,
			Delete:      deleteScan,
		}
		if cmd.Flags().Changed("bucket-count") {
			table.BucketCount = &bucketCount
		}
		layout := shards.NewTableLayoutHandle(table, predicate.All[spi.ColumnHandle]())

		enc := json.NewEncoder(cmd.OutOrStdout())
		return conn.EnumerateSplits(ctx, layout, func(s *shards.Split) error {
			return enc.Encode(s)
		})
	},
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "list live worker nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := app.NewConnector(ctx, config.ConnectorConfig())
		if err != nil {
			return err
		}
		defer conn.Close()

		live, err := conn.Nodes.WorkerNodes(ctx)
		if err != nil {
			return err
		}
		for _, n := range live {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", n.Identifier, n.Address)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve connector metrics and keep the node registration alive",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		conn, err := app.NewConnector(ctx, config.ConnectorConfig())
		if err != nil {
			return err
		}
		return app.NewApp(conn, config.ConnectorConfig().MetricsAddr).Run(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warning, error, fatal")
	rootCmd.PersistentFlags().BoolVarP(&prettyLog, "pretty-log", "P", false, "write logs in human-readable format")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch", 1000, "split batch size")

	splitsCmd.Flags().Int64Var(&tableID, "table", 0, "table id")
	splitsCmd.Flags().IntVar(&bucketCount, "bucket-count", 0, "bucket count of a bucketed table")
	splitsCmd.Flags().BoolVar(&deleteScan, "delete", false, "scan for delete: one split per bucketed shard")
	_ = splitsCmd.MarkFlagRequired("table")

	rootCmd.AddCommand(splitsCmd, nodesCmd, serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		storelog.Zero.Error().Err(err).Msg("")
		os.Exit(1)
	}
}
