package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/ssrdiff/rewrite"
)

func newNormalizeCmd() *cobra.Command {
	var base, pageURL string
	cmd := &cobra.Command{
		Use:   "normalize [file|-]",
		Short: "Rewrite relative src/href references to absolute URLs",
		Long: `Read HTML from a file (or stdin when omitted or "-") and print it with every
relative src and href resolved against --base. --page-url derives the base
from a page location instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			markup, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			if base == "" {
				base = rewrite.BaseURL(pageURL)
			}
			out, err := rewrite.Normalize(markup, base)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "absolute base URL")
	cmd.Flags().StringVar(&pageURL, "page-url", "", "page URL to derive the base from")
	return cmd
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}
