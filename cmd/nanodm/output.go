package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/nanodm/types"
)

// parseQuery decodes a query document. YAML is a superset of JSON, so both
// notations are accepted. An empty string matches everything.
func parseQuery(raw string) (types.Query, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.Query{}, nil
	}
	var q map[string]any
	if err := yaml.Unmarshal([]byte(raw), &q); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	if q == nil {
		return nil, fmt.Errorf("invalid query: expected a document")
	}
	return types.Query(q), nil
}

// print writes v to the command output in the configured format
func (cli *CLI) print(cmd *cobra.Command, v any) error {
	format := cli.viperInst.GetString("output")
	w := cmd.OutOrStdout()

	switch format {
	case "", "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (use json or yaml)", format)
	}
}
