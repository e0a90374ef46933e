package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/cpc-project/nvm3"
)

func versionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			if short {
				_, err := fmt.Fprintln(w, Version)
				return err
			}
			fmt.Fprintf(w, "nvm3ctl %s\n", Version)
			fmt.Fprintf(w, "  Commit:           %s\n", Commit)
			fmt.Fprintf(w, "  Built:            %s\n", Date)
			fmt.Fprintf(w, "  Protocol version: %s\n", nvm3.ClientVersion)
			fmt.Fprintf(w, "  Go version:       %s\n", runtime.Version())
			fmt.Fprintf(w, "  OS/Arch:          %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Show only the version number")
	return cmd
}
