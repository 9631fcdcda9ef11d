package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gnoswap-labs/borrowck"
)

var explainCmd = &cobra.Command{
	Use:   "explain [rule]",
	Short: "Describe a rule, or list every rule",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			for _, kind := range borrowck.Kinds {
				explainKind(out, kind)
			}
			return nil
		}
		kind, ok := borrowck.ParseKind(args[0])
		if !ok {
			return fmt.Errorf("unknown rule %q", args[0])
		}
		explainKind(out, kind)
		return nil
	},
}

func explainKind(out io.Writer, kind borrowck.Kind) {
	fmt.Fprintf(out, "%-18s %s\n", kind, kind.Description())
}
