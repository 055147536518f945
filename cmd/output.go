package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// writeJSON prints v as indented JSON. A non-empty selector is a JSONPath
// expression applied to the encoded value; the matches are printed as an array.
func writeJSON(w io.Writer, v any, selector string) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	data, err := oj.Parse(raw)
	if err != nil {
		return fmt.Errorf("decoding output: %w", err)
	}
	if selector != "" {
		x, err := jp.ParseString(selector)
		if err != nil {
			return fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
		}
		data = x.Get(data)
	}
	_, err = fmt.Fprintln(w, oj.JSON(data, &ojg.Options{Indent: 2, Sort: true}))
	return err
}

func truncTitle(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back up to a rune boundary
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
