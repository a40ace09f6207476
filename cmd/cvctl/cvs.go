package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"vitaeforge/internal/client"
)

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	cmd.Println(string(out))
	return nil
}

func ago(t time.Time) string {
	d := time.Since(t).Round(time.Second)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return t.Local().Format("2006-01-02")
}

func printCVs(cmd *cobra.Command, items []client.CVItem) error {
	switch output {
	case "":
		tw := table.NewWriter()
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateHeader = false
		tw.Style().Options.SeparateRows = false
		tw.AppendHeader(table.Row{"ID", "TITLE", "CREATED", "UPDATED"})
		for _, it := range items {
			tw.AppendRow(table.Row{it.ID, it.Title, ago(it.CreatedAt), ago(it.UpdatedAt)})
		}
		cmd.Printf("%s\n", tw.Render())
	case "json":
		return printJSON(cmd, items)
	default:
		return fmt.Errorf("unknown output format: %s", output)
	}
	return nil
}

func printCV(cmd *cobra.Command, cv client.CV) error {
	if output == "json" {
		return printJSON(cmd, cv)
	}
	cmd.Printf("%s\t%s\n", cv.ID, cv.Title)
	return nil
}

func exactlyOneID(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("cv id is required")
	}
	return nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List your CVs, most recently edited first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			items, err := e.api().ListCVs(cmd.Context())
			if err != nil {
				return err
			}
			return printCVs(cmd, items)
		},
	}
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new [title]",
		Short: "Create a CV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			title := ""
			if len(args) == 1 {
				title = args[0]
			}
			cv, err := e.api().CreateCV(cmd.Context(), title)
			if err != nil {
				return err
			}
			return printCV(cmd, cv)
		},
	}
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open [cv id]",
		Short: "Show a CV, or the most recent one when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			var cv client.CV
			if len(args) == 1 {
				cv, err = e.api().GetCV(cmd.Context(), args[0])
			} else {
				cv, err = e.api().OpenLatest(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printCV(cmd, cv)
		},
	}
}

func newDuplicateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate [cv id]",
		Short: "Copy a CV",
		Args:  exactlyOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			cv, err := e.api().DuplicateCV(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printCV(cmd, cv)
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [cv id]",
		Short: "Delete a CV",
		Args:  exactlyOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.api().DeleteCV(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newListCmd(), newCreateCmd(), newOpenCmd(), newDuplicateCmd(), newRemoveCmd())
}
