package main

import (
	"encoding/json"
	"flag"
	"io"
)

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// decodeJSONLiteral parses a command-line --value flag as a JSON
// literal (string, number, bool, object, array), so "true" records a
// bool and "\"true\"" records the string "true".
func decodeJSONLiteral(raw string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}
