package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newUpdateCmd mirrors the teacher's cmd/monitor polling loop: catch up
// once, then, if --watch is set, keep polling at --interval the way
// monitor.go's ticker loop did for firmware checkpoints.
func newUpdateCmd() *cobra.Command {
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "update [packages...]",
		Short: "Synchronize cached package logs to the registry's latest checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, apiClient, stores, err := newClient(flagURL)
			if err != nil {
				return err
			}
			defer stores.Close()

			run := func() error {
				names := args
				if len(names) == 0 {
					packages, err := c.Registry().LoadPackages(ctx, "")
					if err != nil {
						return fmt.Errorf("warg: list cached packages: %w", err)
					}
					for _, p := range packages {
						names = append(names, p.Name)
					}
				}
				if len(names) == 0 {
					return nil
				}
				trusted, err := apiClient.LatestCheckpoint(ctx, "")
				if err != nil {
					return fmt.Errorf("warg: fetch latest checkpoint: %w", err)
				}
				return c.UpdateCheckpoint(ctx, "", trusted, names)
			}

			if err := run(); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := run(); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep polling for new checkpoints after the initial sync")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "polling interval when --watch is set")
	return cmd
}
