package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/ponylang/pony-lsp/internal/scope"
	"github.com/tidwall/pretty"
)

func main() {
	args := os.Args[1:]
	asSymbol := len(args) > 0 && args[0] == "--symbol"
	if asSymbol {
		args = args[1:]
	}
	if len(args) > 1 {
		fmt.Fprintln(os.Stderr, "Usage: go run cmd/debug_scope/main.go [--symbol] [captured_response_file]")
		os.Exit(1)
	}

	var (
		data []byte
		err  error
	)
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read response: %v\n", err)
		os.Exit(1)
	}

	var decoded any
	if asSymbol {
		decoded, err = scope.DecodeSymbol(data)
	} else {
		decoded, err = scope.DecodeScope(data)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode %d bytes: %v\n", len(data), err)
		os.Exit(1)
	}

	out, err := json.Marshal(decoded)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(1)
	}

	out = pretty.Pretty(out)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		out = pretty.Color(out, nil)
	}
	_, _ = os.Stdout.Write(out)
}
