package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vitaeforge/internal/client"
)

var (
	previewColor string
	previewFont  string
	previewPrint bool
	previewOut   string
)

// parseAssignments turns ["a=1", "b=two words"] into a field map.
func parseAssignments(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		path, value, ok := strings.Cut(arg, "=")
		path = strings.TrimSpace(path)
		if !ok || path == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		fields[path] = value
	}
	return fields, nil
}

func printFieldErrors(cmd *cobra.Command, view client.EditorView) {
	for _, fe := range view.Errors {
		cmd.PrintErrf("invalid %s: %s\n", fe.Field, fe.Issue)
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [cv id] field=value...",
		Short: "Edit fields of a CV and save",
		Example: `  cvctl set 3f6c... personal.fullName="Ada Lovelace" summary="Analyst"
  cvctl set 3f6c... experience.<entry id>.position=Engineer`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			e, _, err := signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			id := args[0]
			if _, err := e.api().OpenEditor(ctx, id); err != nil {
				return err
			}
			view, err := e.api().SetFields(ctx, id, fields)
			if err != nil {
				return err
			}
			printFieldErrors(cmd, view)
			if err := e.api().CloseEditor(ctx, id); err != nil {
				return err
			}
			if len(view.Errors) > 0 {
				return fmt.Errorf("%d field(s) rejected; valid edits were saved", len(view.Errors))
			}
			cmd.Println("Saved")
			return nil
		},
	}
}

func newRefineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refine [cv id] [field]",
		Short: "Rewrite a free-text field with the AI assistant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			id, field := args[0], args[1]
			if _, err := e.api().OpenEditor(ctx, id); err != nil {
				return err
			}
			res, err := e.api().RefineField(ctx, id, field)
			if err != nil {
				_ = e.api().CloseEditor(ctx, id)
				return err
			}
			if err := e.api().CloseEditor(ctx, id); err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd, res)
			}
			cmd.Println(res.Text)
			return nil
		},
	}
}

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [cv id]",
		Short: "Render a CV as HTML",
		Args:  exactlyOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			html, err := e.api().Preview(cmd.Context(), args[0], previewColor, previewFont, previewPrint)
			if err != nil {
				return err
			}
			if previewOut == "" || previewOut == "-" {
				_, err = cmd.OutOrStdout().Write(html)
				return err
			}
			if err := os.WriteFile(previewOut, html, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", previewOut, err)
			}
			cmd.Printf("Wrote %s\n", previewOut)
			return nil
		},
	}
	cmd.Flags().StringVar(&previewColor, "color", "", "Accent color, for example 64B5F6")
	cmd.Flags().StringVar(&previewFont, "font", "", "Font: poppins, pt-sans or inter")
	cmd.Flags().BoolVar(&previewPrint, "print", false, "Render the print layout")
	cmd.Flags().StringVar(&previewOut, "out", "", "Output file (default stdout)")
	return cmd
}

func init() {
	rootCmd.AddCommand(newSetCmd(), newRefineCmd(), newPreviewCmd())
}
