// Command redis-server starts the key/value server in either the
// leader or follower role, per spec 6's external CLI surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandia-minimega/redis-go/internal/config"
	"github.com/sandia-minimega/redis-go/internal/logging"
	"github.com/sandia-minimega/redis-go/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var port uint16
	var replicaOf string
	var logLevel string

	cmd := &cobra.Command{
		Use:           "redis-server",
		Short:         "An in-memory key/value server with leader/follower replication",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.SetLevel(logLevel); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}

			cfg := config.Config{Port: port}

			if replicaOf != "" {
				host, leaderPort, err := config.ParseReplicaOf(replicaOf)
				if err != nil {
					return err
				}
				cfg.IsReplica = true
				cfg.LeaderHost = host
				cfg.LeaderPort = leaderPort
			}

			return run(cfg)
		},
	}

	cmd.Flags().Uint16Var(&port, "port", 6379, "TCP port to listen on")
	cmd.Flags().StringVar(&replicaOf, "replicaof", "", `become a follower of "<host> <port>"`)
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "trace|debug|info|warn|error")

	return cmd
}

func run(cfg config.Config) error {
	var srv *server.Server
	if cfg.IsReplica {
		srv = server.NewFollowerOf(cfg.Port, cfg.LeaderHost, cfg.LeaderPort)
	} else {
		srv = server.New(cfg.Port)
	}
	return srv.Run()
}
