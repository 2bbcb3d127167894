package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/ssrdiff/structdiff"
)

func newDiffCmd() *cobra.Command {
	var (
		style  bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "diff <rendered-file> <reference-file>",
		Short: "Structurally compare two HTML files and print the annotated result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rendered, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			reference, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			res, err := structdiff.Diff(string(rendered), string(reference))
			if err != nil {
				return err
			}
			if style && res.Compared {
				res.Rendered = structdiff.InjectMarkerStyle(res.Rendered, structdiff.Added)
				res.Reference = structdiff.InjectMarkerStyle(res.Reference, structdiff.Missing)
			}

			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return fmt.Errorf("out-dir: %w", err)
				}
				if err := os.WriteFile(filepath.Join(outDir, "rendered.html"), []byte(res.Rendered), 0o644); err != nil {
					return fmt.Errorf("out-dir: %w", err)
				}
				if err := os.WriteFile(filepath.Join(outDir, "reference.html"), []byte(res.Reference), 0o644); err != nil {
					return fmt.Errorf("out-dir: %w", err)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().BoolVar(&style, "style", false, "inject the marker style into each annotated head")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "also write rendered.html and reference.html to this directory")
	return cmd
}
