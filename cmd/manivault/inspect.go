package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/dshills/manivault/internal/project"
)

func newInspectCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <project-url>",
		Short: "Show the metadata of a project document without loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			raw, err := afs.New().DownloadWithURL(cmd.Context(), url)
			if err != nil {
				return fmt.Errorf("read %s: %w", url, err)
			}
			info, err := project.Probe(project.FormatOf(url), raw)
			if err != nil {
				return err
			}
			return printInfo(cmd, url, info, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func printInfo(cmd *cobra.Command, url string, info project.Info, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"url":           url,
			"format":        info.Format.String(),
			"version":       info.Version,
			"application":   info.Application,
			"saved":         info.Saved,
			"items":         info.Items,
			"publicActions": info.PublicActions,
		})
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "URL:\t%s\n", url)
	fmt.Fprintf(w, "Format:\t%s (version %d)\n", info.Format, info.Version)
	fmt.Fprintf(w, "Application:\t%s\n", info.Application)
	fmt.Fprintf(w, "Saved:\t%s\n", info.Saved)
	fmt.Fprintf(w, "Items:\t%d\n", info.Items)
	fmt.Fprintf(w, "Public actions:\t%d\n", info.PublicActions)
	return w.Flush()
}
