package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/manivault/internal/plugin"
)

func newPluginsCommand(global *globalFlags) *cobra.Command {
	var discovered bool
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List registered plugin factories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if discovered {
				return listManifests(cmd, global)
			}
			return listFactories(cmd, global)
		},
	}
	cmd.Flags().BoolVar(&discovered, "discovered", false, "List plugin manifests found on the search paths without loading them")
	return cmd
}

func listFactories(cmd *cobra.Command, global *globalFlags) error {
	store, logging, core, err := global.newCore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()
	defer func() { _ = logging.Logger.Sync() }()
	defer core.Close(context.Background())

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tTYPE\tVERSION\tMAX")
	for _, f := range core.Plugins().Factories() {
		limit := "-"
		if n := f.MaxInstances(); n > 0 {
			limit = fmt.Sprint(n)
		}
		ver := "-"
		if v := f.Version(); v != nil {
			ver = v.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Kind(), f.Type(), ver, limit)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if lerr := core.PluginLoadError(); lerr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nSome plugins were not loaded:\n%v\n", lerr)
	}
	return nil
}

func listManifests(cmd *cobra.Command, global *globalFlags) error {
	store, cfg, err := global.loadConfig()
	if err != nil {
		return err
	}
	defer store.Close()

	loader := plugin.NewLoader(plugin.WithPaths(cfg.Plugins.Paths...))
	manifests, err := loader.Discover()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tTYPE\tVERSION\tPATH")
	for _, m := range manifests {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Kind, m.Type, m.Version, m.Path())
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nSome manifests are invalid:\n%v\n", err)
	}
	return nil
}
