package commands

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cpc-project/nvm3"
	"github.com/cpc-project/nvm3/kv"
)

type objectView struct {
	Key  nvm3.ObjectKey `json:"key" yaml:"key"`
	Type string         `json:"type" yaml:"type"`
	Size int            `json:"size" yaml:"size"`
}

type storeView struct {
	Instance     string `json:"instance" yaml:"instance"`
	Client       string `json:"client_version" yaml:"client_version"`
	MaxWriteSize int    `json:"max_write_size" yaml:"max_write_size"`
	Timeout      string `json:"timeout" yaml:"timeout"`
	Objects      int    `json:"objects" yaml:"objects"`
}

func parseKey(s string) (nvm3.ObjectKey, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return nvm3.ObjectKey(n), nil
}

// parseValue reads "@path" from a file and anything else as hex.
func parseValue(s string) ([]byte, error) {
	if path, ok := strings.CutPrefix(s, "@"); ok {
		return os.ReadFile(path)
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex value: %w", err)
	}
	return b, nil
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [key]",
		Short: "Show the store, or one object",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				key, err := parseKey(args[0])
				if err != nil {
					return err
				}
				return a.run(cmd, func(s *kv.Client) error {
					info, err := s.Info(key)
					if err != nil {
						return err
					}
					v := objectView{Key: key, Type: info.Type.String(), Size: info.Size}
					t := newTable("Key", "Type", "Size")
					t.add(fmt.Sprintf("0x%05X", key), v.Type, strconv.Itoa(v.Size))
					return writeResult(cmd, v, t)
				})
			}

			return a.run(cmd, func(s *kv.Client) error {
				maxWrite, err := nvm3.GetMaximumWriteSize(s.Handle())
				if err != nil {
					return err
				}
				count, err := nvm3.GetObjectCount(s.Handle())
				if err != nil {
					return err
				}
				sec, usec, err := nvm3.GetTimeout(s.Handle())
				if err != nil {
					return err
				}
				timeout := time.Duration(sec)*time.Second + time.Duration(usec)*time.Microsecond
				v := storeView{
					Instance:     a.cfg.Instance,
					Client:       nvm3.ClientVersion.String(),
					MaxWriteSize: maxWrite,
					Timeout:      timeout.String(),
					Objects:      count,
				}
				t := newTable("Field", "Value")
				t.add("instance", v.Instance)
				t.add("client version", v.Client)
				t.add("max write size", strconv.Itoa(v.MaxWriteSize))
				t.add("timeout", v.Timeout)
				t.add("objects", strconv.Itoa(v.Objects))
				return writeResult(cmd, v, t)
			})
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(s *kv.Client) error {
				keys, err := s.Keys()
				if err != nil {
					return err
				}

				views := make([]objectView, 0, len(keys))
				t := newTable("Key", "Type", "Size")
				for _, k := range keys {
					info, err := s.Info(k)
					if err != nil {
						return err
					}
					v := objectView{Key: k, Type: info.Type.String(), Size: info.Size}
					views = append(views, v)
					t.add(fmt.Sprintf("0x%05X", k), v.Type, strconv.Itoa(v.Size))
				}
				return writeResult(cmd, views, t)
			})
		},
	}
}

func (a *app) readCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "read <key>",
		Short: "Print a data object as hex",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			return a.run(cmd, func(s *kv.Client) error {
				value, err := s.Get(key)
				if err != nil {
					return err
				}
				if out != "" {
					return os.WriteFile(out, value, 0o644)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(value))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write the raw bytes to this file")
	return cmd
}

func (a *app) writeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write <key> <hex|@file>",
		Short: "Store a data object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			value, err := parseValue(args[1])
			if err != nil {
				return err
			}
			return a.run(cmd, func(s *kv.Client) error {
				return s.Set(key, value)
			})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			return a.run(cmd, func(s *kv.Client) error {
				return s.Delete(key)
			})
		},
	}
}
