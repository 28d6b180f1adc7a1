package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func stateCmd(a *app) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the stored fingerprints",
		Long: `Print how many fingerprints the configured state backend holds. With
--list, print each fingerprint on its own line, sorted. The state is never
modified; a corrupt state file is reported, not repaired.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, closeStore, err := openStore(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			set, err := st.Load(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if list {
				for _, fp := range set.Sorted() {
					fmt.Fprintln(out, fp)
				}
				return nil
			}
			fmt.Fprintf(out, "%d fingerprints (%s backend)\n", set.Len(), a.cfg.State.Backend)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "Print every stored fingerprint")

	return cmd
}
