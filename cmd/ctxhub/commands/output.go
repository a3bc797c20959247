package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/itchyny/gojq"
)

// jqFilter holds the --jq expression shared by the read commands.
var jqFilter string

// printJSON renders v on stdout: indented JSON, or the output of the
// --jq filter when one is set.
func printJSON(v any) error {
	return fprintJSON(os.Stdout, v, jqFilter)
}

func fprintJSON(w io.Writer, v any, filter string) error {
	if filter == "" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	// gojq operates on plain decoded values, so round-trip through JSON.
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}

	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("invalid --jq filter: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("invalid --jq filter: %w", err)
	}

	iter := code.Run(decoded)
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := out.(error); ok {
			return fmt.Errorf("--jq filter failed: %w", err)
		}
		switch val := out.(type) {
		case string:
			fmt.Fprintln(w, val)
		case nil:
			fmt.Fprintln(w, "null")
		default:
			encoded, err := json.MarshalIndent(val, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(encoded))
		}
	}
	return nil
}
