package main

import (
	"encoding/json"
	"reflect"

	"github.com/spf13/cobra"
)

// jsonOutput backs the --json flag shared by the listing commands.
type jsonOutput struct {
	enabled bool
}

func addJSONFlag(cmd *cobra.Command) *jsonOutput {
	out := &jsonOutput{}
	cmd.Flags().BoolVar(&out.enabled, "json", false, "Output JSON")
	return out
}

// emit writes v as indented JSON when --json was given and reports whether it
// did. Empty listings encode as [] so scripts never see null.
func (o *jsonOutput) emit(cmd *cobra.Command, v any) (bool, error) {
	if !o.enabled {
		return false, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.IsNil() {
		v = []struct{}{}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}
