package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/ssrdiff/compare"
)

func newCompareCmd(root *rootOptions) *cobra.Command {
	var (
		target    string
		raw       bool
		noRewrite bool
		highlight bool
		outDir    string
	)
	cmd := &cobra.Command{
		Use:   "compare <url>",
		Short: "Fetch a page and its rendered DOM, then print the comparison report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			st, err := newStack(cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			opts := st.service.Defaults()
			if cmd.Flags().Changed("raw") {
				opts.Raw = raw
			}
			if noRewrite {
				opts.Rewrite = false
			}
			if cmd.Flags().Changed("highlight") {
				opts.Highlight = highlight
			}

			rep, err := st.service.Compare(cmd.Context(), compare.CompareRequest{
				URL:     args[0],
				Target:  target,
				Options: &opts,
			})
			if err != nil {
				return err
			}

			if outDir != "" {
				if err := writePanels(outDir, rep); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "CDP target ID of an open tab to read instead of opening the URL")
	cmd.Flags().BoolVar(&raw, "raw", false, "keep both markups verbatim")
	cmd.Flags().BoolVar(&noRewrite, "no-rewrite", false, "leave relative src/href references untouched")
	cmd.Flags().BoolVar(&highlight, "highlight", false, "mark added and missing elements")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "write reference.html and rendered.html panels to this directory")
	return cmd
}

// writePanels writes each successfully acquired panel to dir.
func writePanels(dir string, rep *compare.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("out-dir: %w", err)
	}
	for name, p := range map[string]compare.Panel{
		"reference.html": rep.Reference,
		"rendered.html":  rep.Rendered,
	} {
		if p.Failed() {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(p.Markup), 0o644); err != nil {
			return fmt.Errorf("out-dir: %w", err)
		}
	}
	return nil
}
