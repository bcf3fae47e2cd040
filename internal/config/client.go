package config

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Paths inside workspace/didChangeConfiguration params.
const (
	clientAnalyzerPath = "settings.ponyLang.ponyIntellisensePath"
	clientPonyPath     = "settings.ponyLang.ponyPath"
	clientTimeout      = "settings.ponyLang.timeout"
)

// ClientOverrides extracts the ponyLang section from raw
// didChangeConfiguration params. Absent keys stay unset, so the lower
// layers and the built-in defaults apply.
func ClientOverrides(params []byte) (Overrides, error) {
	res := gjson.GetManyBytes(params, clientAnalyzerPath, clientPonyPath, clientTimeout)

	o := Overrides{
		AnalyzerPath: res[0].String(),
		PonyPath:     res[1].String(),
	}

	switch timeout := res[2]; timeout.Type {
	case gjson.Number:
		// plain numbers are milliseconds
		o.Timeout = time.Duration(timeout.Int()) * time.Millisecond
	case gjson.String:
		d, err := parseTimeout(timeout.String())
		if err != nil {
			return Overrides{}, err
		}
		o.Timeout = d
	}

	return o, nil
}

func parseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	return d, nil
}
