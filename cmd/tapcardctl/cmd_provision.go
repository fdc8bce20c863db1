package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"tapcard_server/core/port/in"
	"tapcard_server/internal/bootstrap"

	"github.com/spf13/cobra"
)

var (
	provisionCount  int
	provisionPrefix string
	provisionOut    string
)

// provisionCmd mints a batch of unactivated cards
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create a batch of unactivated cards",
	Long: `Create --count new UNACTIVATED cards with random unused UIDs.

The card_uid,url manifest is written to --out (default stdout) and, when R2
is configured, uploaded to the manifest bucket as well.`,
	Example: `  tapcardctl provision --count 500 --prefix KX --out batch.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *bootstrap.Dependencies) error {
			return runProvision(ctx, deps, cmd.OutOrStdout(), cmd.ErrOrStderr())
		})
	},
}

func init() {
	provisionCmd.Flags().IntVarP(&provisionCount, "count", "n", 0, "Number of cards to create")
	provisionCmd.Flags().StringVar(&provisionPrefix, "prefix", "", "Two-letter UID prefix (default: any)")
	provisionCmd.Flags().StringVarP(&provisionOut, "out", "o", "", "Write the CSV manifest to this file")
	_ = provisionCmd.MarkFlagRequired("count")
}

func runProvision(ctx context.Context, deps *bootstrap.Dependencies, stdout, stderr io.Writer) error {
	res, err := deps.ProvisioningService.Provision(ctx, &in.ProvisionRequest{
		Count:  provisionCount,
		Prefix: provisionPrefix,
	})
	if err != nil {
		return err
	}

	w := stdout
	if provisionOut != "" {
		f, err := os.Create(provisionOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := deps.ProvisioningService.WriteManifest(w, res.CardUIDs); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	fmt.Fprintf(stderr, "provisioned %d of %d cards\n", res.Inserted, res.Requested)
	if res.Inserted < res.Requested {
		fmt.Fprintf(stderr, "warning: UID space exhausted after %d cards\n", res.Inserted)
	}
	if res.ManifestURL != "" {
		fmt.Fprintf(stderr, "manifest uploaded: %s\n", res.ManifestURL)
	}
	return nil
}
