package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/birchill/10sai-sub003/internal/platform"
	"github.com/birchill/10sai-sub003/pkg/core"
	syncpkg "github.com/birchill/10sai-sub003/pkg/sync"
)

var (
	syncServer   string
	syncUsername string
	syncPassword string
	syncClear    bool
	syncTimeout  time.Duration
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync with the configured server",
	Long: `Replicate cards bi-directionally with another store. The
server (a directory path) is remembered in the vault config; pass
--server to change it, or --clear to forget it.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg, err := loadConfig(vaultPath())
		if err != nil {
			fatal("Failed to load config", err)
		}

		if syncClear {
			cfg.Sync = SyncConfig{}
			if err := saveConfig(vaultPath(), cfg); err != nil {
				fatal("Failed to save config", err)
			}
			fmt.Println("Sync server cleared.")
			return
		}
		if cmd.Flags().Changed("server") {
			cfg.Sync.Server = syncServer
			cfg.Sync.Username = syncUsername
			cfg.Sync.Password = syncPassword
			if err := saveConfig(vaultPath(), cfg); err != nil {
				fatal("Failed to save config", err)
			}
		}

		server := syncpkg.Server{
			Name:     cfg.Sync.Server,
			Username: cfg.Sync.Username,
			Password: cfg.Sync.Password,
		}
		if !server.Configured() {
			fatal("No sync server configured", fmt.Errorf("set one with --server"))
		}

		svc := openStore(ctx)
		defer svc.Close()

		local, ok := svc.Storage().(core.Replica)
		if !ok {
			fatal("Storage does not support replication", fmt.Errorf("engine %T", svc.Storage()))
		}

		engine := syncpkg.NewEngine(local, platform.OpenReplica, syncpkg.Config{
			Logger: slog.Default(),
		})
		engine.Start(ctx)

		idle := make(chan struct{}, 1)
		failed := make(chan error, 1)
		err = engine.SetServer(server, syncpkg.Callbacks{
			OnProgress: func(fraction *float64) {
				if fraction != nil {
					fmt.Printf("\rsyncing... %3.0f%%", *fraction*100)
				}
			},
			OnIdle: func() {
				select {
				case idle <- struct{}{}:
				default:
				}
			},
			OnError: func(err error) {
				select {
				case failed <- err:
				default:
				}
			},
		})
		if err != nil {
			fatal("Failed to start sync", err)
		}

		select {
		case <-idle:
			fmt.Println("\nSync complete.")
		case err := <-failed:
			engine.Stop()
			fatal("\nSync failed", err)
		case <-time.After(syncTimeout):
			engine.Stop()
			fatal("Sync timed out", fmt.Errorf("no progress within %s", syncTimeout))
		}
		engine.Stop()
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncServer, "server", "", "Sync server (directory path of the peer store)")
	syncCmd.Flags().StringVar(&syncUsername, "username", "", "Username for the sync server")
	syncCmd.Flags().StringVar(&syncPassword, "password", "", "Password for the sync server")
	syncCmd.Flags().BoolVar(&syncClear, "clear", false, "Forget the configured sync server")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 5*time.Minute, "Give up after this long")
	rootCmd.AddCommand(syncCmd)
}
