package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newBackendsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the classifier chain in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := bootstrap(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close(cmd.Context()) }()

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(deps.Chain.Describe())
		},
	}
}
