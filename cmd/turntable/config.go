package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	var (
		save bool
		to   string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, or save it",
		Long: `Config prints the configuration after defaults, the config file and
command-line flags are merged. With --save it is written to the user config
directory; with --to, to the given file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case to != "":
				if err := a.cfg.SaveTo(to); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), to)
				return nil
			case save:
				path, err := a.cfg.Save()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			default:
				return a.cfg.Encode(cmd.OutOrStdout())
			}
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "write to the user config directory")
	cmd.Flags().StringVar(&to, "to", "", "write to this file")
	return cmd
}
