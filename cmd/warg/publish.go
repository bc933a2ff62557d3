package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
	"github.com/wargproto/warg-go/storage"
)

// newPublishCmd builds and submits a package record from flags, the CLI
// surface over client.Publish (C6). A release entry is the common case, so
// --release/--content are first-class flags; --init and --grant-key/
// --revoke-key/--yank cover the rarer entry kinds for completeness.
func newPublishCmd() *cobra.Command {
	var (
		keyFile   string
		name      string
		init      bool
		release   string
		content   string
		yank      string
		grantKey  string
		revokeKey string
		wait      bool
		waitPoll  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a new record to a package's log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("warg: --name is required")
			}
			key, err := loadSigningKey(keyFile)
			if err != nil {
				return err
			}

			var entries []protocol.PackageEntry
			if init {
				entries = append(entries, protocol.PackageEntry{
					Kind: protocol.PackageEntryInit,
					Key:  key.PublicKey(),
				})
			}
			if release != "" {
				if content == "" {
					return fmt.Errorf("warg: --content is required with --release")
				}
				digest, err := crypto.ParseHash(content)
				if err != nil {
					return fmt.Errorf("warg: invalid --content digest: %w", err)
				}
				entries = append(entries, protocol.PackageEntry{
					Kind:    protocol.PackageEntryRelease,
					Version: release,
					Content: digest,
				})
			}
			if yank != "" {
				entries = append(entries, protocol.PackageEntry{
					Kind:    protocol.PackageEntryYank,
					Version: yank,
				})
			}
			if grantKey != "" {
				granted, err := crypto.ParsePublicKey(grantKey)
				if err != nil {
					return fmt.Errorf("warg: invalid --grant-key: %w", err)
				}
				entries = append(entries, protocol.PackageEntry{
					Kind:  protocol.PackageEntryGrantKey,
					KeyID: granted.KeyID(),
					Key:   granted,
				})
			}
			if revokeKey != "" {
				entries = append(entries, protocol.PackageEntry{
					Kind:  protocol.PackageEntryRevokeKey,
					KeyID: crypto.KeyID(revokeKey),
				})
			}
			if len(entries) == 0 {
				return fmt.Errorf("warg: nothing to publish (use --init, --release, --yank, --grant-key, or --revoke-key)")
			}

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

			recordID, err := c.PublishWithInfo(ctx, domain, key, storage.PublishInfo{Name: name, Entries: entries})
			if err != nil {
				return fmt.Errorf("warg: publish: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted record %s\n", recordID)

			if !wait {
				return nil
			}
			if err := c.WaitForPublish(ctx, domain, name, recordID, waitPoll); err != nil {
				return fmt.Errorf("warg: publish: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "published")
			return nil
		},
	}

	cmd.Flags().StringVar(&keyFile, "key", "", "path to a file holding a base64 ed25519 private key (if omitted, a fresh key is generated and printed)")
	cmd.Flags().StringVar(&name, "name", "", "package name")
	cmd.Flags().BoolVar(&init, "init", false, "include an init entry, starting a new package log")
	cmd.Flags().StringVar(&release, "release", "", "version to release")
	cmd.Flags().StringVar(&content, "content", "", "content digest for --release, as algorithm:hex")
	cmd.Flags().StringVar(&yank, "yank", "", "version to yank")
	cmd.Flags().StringVar(&grantKey, "grant-key", "", "base64 public key to grant package-scoped signing rights")
	cmd.Flags().StringVar(&revokeKey, "revoke-key", "", "key id to revoke package-scoped signing rights from")
	cmd.Flags().BoolVar(&wait, "wait", false, "block until the record is published or rejected")
	cmd.Flags().DurationVar(&waitPoll, "wait-interval", 2*time.Second, "polling interval for --wait")
	return cmd
}

// loadSigningKey reads a base64-encoded private key from path. If path is
// empty, it generates a fresh key pair and prints it so the caller can save
// it for future invocations against the same package.
func loadSigningKey(path string) (crypto.PrivateKey, error) {
	if path == "" {
		key, err := crypto.GenerateKeyPair()
		if err != nil {
			return crypto.PrivateKey{}, fmt.Errorf("warg: generate signing key: %w", err)
		}
		fmt.Fprintf(os.Stderr, "warg: generated signing key (save with --key to reuse): %s\n", key.String())
		return key, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return crypto.PrivateKey{}, fmt.Errorf("warg: read key file: %w", err)
	}
	key, err := crypto.ParsePrivateKey(strings.TrimSpace(string(raw)))
	if err != nil {
		return crypto.PrivateKey{}, fmt.Errorf("warg: %w", err)
	}
	return key, nil
}
