package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wargproto/warg-go/protocol"
)

// newDownloadCmd wraps client.Download/DownloadExact (C6b): resolve a
// package's release against a version requirement (or an exact version)
// and print where the content landed in the local store.
func newDownloadCmd() *cobra.Command {
	var (
		version string
		exact   string
	)

	cmd := &cobra.Command{
		Use:   "download <package>",
		Short: "Resolve a package release and ensure its content is cached locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ctx := cmd.Context()
			c, _, stores, err := newClient(flagURL)
			if err != nil {
				return err
			}
			defer stores.Close()

			domain, err := resolveDomain(ctx, c, name)
			if err != nil {
				return err
			}

			if exact != "" {
				r, err := c.DownloadExact(ctx, domain, name, exact)
				if err != nil {
					return fmt.Errorf("warg: download: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", r.Version, r.Digest, r.Path)
				return nil
			}

			req := protocol.VersionReq(version)
			r, err := c.Download(ctx, domain, name, req)
			if err != nil {
				return fmt.Errorf("warg: download: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", r.Version, r.Digest, r.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version-req", "*", "version requirement to satisfy (e.g. \"^1.2.0\")")
	cmd.Flags().StringVar(&exact, "exact", "", "download this exact version, ignoring --version-req")
	return cmd
}
