package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cpc-project/nvm3/kv"
)

func (a *app) counterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Read and update counter objects",
	}

	show := func(cmd *cobra.Command, v uint32) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), v)
		return err
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print a counter",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := parseKey(args[0])
				if err != nil {
					return err
				}
				return a.run(cmd, func(s *kv.Client) error {
					v, err := s.Counter(key)
					if err != nil {
						return err
					}
					return show(cmd, v)
				})
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Store a counter",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := parseKey(args[0])
				if err != nil {
					return err
				}
				value, err := strconv.ParseUint(args[1], 0, 32)
				if err != nil {
					return fmt.Errorf("invalid counter value %q: %w", args[1], err)
				}
				return a.run(cmd, func(s *kv.Client) error {
					return s.SetCounter(key, uint32(value))
				})
			},
		},
		&cobra.Command{
			Use:   "inc <key>",
			Short: "Increment a counter and print the new value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := parseKey(args[0])
				if err != nil {
					return err
				}
				return a.run(cmd, func(s *kv.Client) error {
					v, err := s.Increment(key)
					if err != nil {
						return err
					}
					return show(cmd, v)
				})
			},
		},
	)
	return cmd
}
