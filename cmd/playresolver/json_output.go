package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// emitJSON prints v as indented JSON on the command's stdout. HTML escaping
// is off so Lucene operators in queries (&&, <, >) stay readable.
func emitJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
