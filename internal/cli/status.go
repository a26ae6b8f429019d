package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Parley status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Parley %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Relay:    port=%d bind=%s\n", cfg.Relay.Port, cfg.Relay.Bind)
			if cfg.Identity.UserID != "" {
				fmt.Printf("Identity: %s (%s)\n", cfg.Identity.UserID, cfg.Identity.Name)
			} else {
				fmt.Println("Identity: (not configured)")
			}
			if cfg.Backend.URL != "" {
				fmt.Printf("Backend:  %s\n", cfg.Backend.URL)
			} else {
				fmt.Println("Backend:  (not configured)")
			}
			if cfg.Peer.URL != "" {
				fmt.Printf("Peer:     %s\n", cfg.Peer.URL)
			} else {
				fmt.Println("Peer:     (not configured)")
			}
			fmt.Printf("Store:    %s\n", paths.DatabasePath(cfg.Store))
			return nil
		},
	}
}
