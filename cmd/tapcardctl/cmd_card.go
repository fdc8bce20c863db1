package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/internal/bootstrap"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var cardJSON bool

// cardCmd groups card support commands
var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Inspect and repair physical cards",
}

var cardShowCmd = &cobra.Command{
	Use:   "show UID",
	Short: "Show a card's status and linked profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *bootstrap.Dependencies) error {
			card, err := deps.CardService.Get(ctx, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			return printCard(cmd.OutOrStdout(), card)
		})
	},
}

var cardDelinkCmd = &cobra.Command{
	Use:   "delink UID",
	Short: "Unlink a card from its profile without owner authorization",
	Long: `Return an activated card to UNACTIVATED so it can be activated again.

Use this for support cases where the owner cannot delink the card
themselves. The change is recorded in the card tap log.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *bootstrap.Dependencies) error {
			card, err := deps.CardService.OperatorDelink(ctx, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			return printCard(cmd.OutOrStdout(), card)
		})
	},
}

func init() {
	cardCmd.PersistentFlags().BoolVar(&cardJSON, "json", false, "Print the card as JSON")
}

func printCard(w io.Writer, card *domain.PhysicalCard) error {
	if cardJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(card)
	}

	fmt.Fprintf(w, "uid:        %s\n", card.UID)
	fmt.Fprintf(w, "status:     %s\n", card.Status)
	if card.ProfileID != nil {
		fmt.Fprintf(w, "profile:    %s\n", card.ProfileID)
	}
	if card.ActivatedAt != nil {
		fmt.Fprintf(w, "activated:  %s\n", card.ActivatedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "version:    %d\n", card.Version)
	return nil
}
