package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newResetCmd wraps client.ResetRegistry/ClearContentCache (spec.md §6's
// reset operation).
func newResetCmd() *cobra.Command {
	var (
		allRegistries bool
		content       bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop cached registry and/or content state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, stores, err := newClient(flagURL)
			if err != nil {
				return err
			}
			defer stores.Close()

			if err := c.ResetRegistry(ctx, allRegistries); err != nil {
				return fmt.Errorf("warg: reset: %w", err)
			}
			if content {
				if err := c.ClearContentCache(ctx); err != nil {
					return fmt.Errorf("warg: reset: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allRegistries, "all-registries", false, "drop cached state for every registry, not just the default")
	cmd.Flags().BoolVar(&content, "content", false, "also clear the cached content blob store")
	return cmd
}
