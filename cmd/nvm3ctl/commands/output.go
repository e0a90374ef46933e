package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

// table is the tabular form of a command result.
type table struct {
	headers []string
	rows    [][]string
}

func newTable(headers ...string) *table { return &table{headers: headers} }

func (t *table) add(row ...string) { t.rows = append(t.rows, row) }

func (t *table) render(w io.Writer) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.headers)
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(true)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetCenterSeparator("")
	tw.SetColumnSeparator("")
	tw.SetRowSeparator("")
	tw.SetHeaderLine(false)
	tw.SetBorder(false)
	tw.SetTablePadding("  ")
	tw.SetNoWhiteSpace(true)
	tw.AppendBulk(t.rows)
	tw.Render()
}

// writeResult writes v in the selected output format, or t for table output.
func writeResult(cmd *cobra.Command, v any, t *table) error {
	format, _ := cmd.Flags().GetString("output")
	w := cmd.OutOrStdout()

	switch format {
	case "table", "":
		t.render(w)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (use table, json or yaml)", format)
	}
}

// printMetrics writes the operation counters gathered during the command
// to stderr.
func (a *app) printMetrics(cmd *cobra.Command) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}

	t := newTable("Operation", "Code", "Count")
	for _, mf := range families {
		if mf.GetName() != "nvm3_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			t.add(labels["op"], labels["code"], fmt.Sprintf("%.0f", m.GetCounter().GetValue()))
		}
	}
	sort.Slice(t.rows, func(i, j int) bool { return t.rows[i][0] < t.rows[j][0] })

	t.render(cmd.ErrOrStderr())
	return nil
}
