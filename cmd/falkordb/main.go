// Package main provides the FalkorDB server CLI entry point.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tosone/falkordb/pkg/config"
	"github.com/tosone/falkordb/pkg/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "falkordb",
		Short: "FalkorDB - property-graph database over sparse matrices",
		Long: `FalkorDB serves a declarative pattern-matching query language over
graphs stored as sparse adjacency matrices with delta overlays.

The engine embeds in a small keyspace server: graphs live under keys,
queries run through GRAPH.QUERY, and snapshots stream through virtual
keys in the data directory.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("FalkorDB v%s (%s)\n", version, commit)
		},
	})

	var configPath string
	var listenAddr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the FalkorDB server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.Server.ListenAddress = listenAddr
			}

			log := logrus.New()
			if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
				log.SetLevel(lvl)
			}

			srv, err := server.New(cfg, nil, log)
			if err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				log.Info("shutting down")
				_ = srv.Close()
			}()

			return srv.Run()
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address override")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
