package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"librigo/internal/apiserver/auth"
	"librigo/internal/shared/domainerr"
)

func newCodesCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Manage one-time registration codes",
	}
	cmd.AddCommand(newCodesIssueCmd(g), newCodesListCmd(g))
	return cmd
}

func newCodesIssueCmd(g *globalFlags) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Generate new registration codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			codes, err := auth.NewService(store, auth.Config{}).IssueCodes(cmd.Context(), count)
			if err != nil {
				return fmt.Errorf("issue codes: %s", domainerr.Message(err))
			}
			for _, c := range codes {
				fmt.Fprintln(cmd.OutOrStdout(), c.Code)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of codes to generate")
	return cmd
}

func newCodesListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registration codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			codes, err := store.ListRegistrationCodes(cmd.Context())
			if err != nil {
				return fmt.Errorf("list codes: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tUSED\tUSED_BY\tCREATED_AT")
			for _, c := range codes {
				usedBy := "-"
				if c.UsedBy != nil {
					usedBy = fmt.Sprintf("%d", *c.UsedBy)
				}
				fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", c.Code, c.IsUsed, usedBy, c.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}
