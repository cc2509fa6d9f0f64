// frost - JSON freeze/defrost CLI tool
//
// Usage:
//
//	frost [-config file.yaml] beautify [file]        Pretty-print JSON
//	frost [-config file.yaml] parse [file]           Parse JSON and print it compact
//	frost [-config file.yaml] extract PATH [file]    Print every value found at a dotted path
//	frost [-config file.yaml] roundtrip [file]       Defrost then freeze again
//
// If no file is given, reads from stdin.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pasqal-io/frost"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

var errUsage = errors.New("usage")

// Run a command and return the exit status.
//
// Output is flushed and input files are closed before returning, including on errors.
func run(argv []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	out := bufio.NewWriter(stdout)
	err := dispatch(argv, stdin, out, stderr)
	if flushErr := out.Flush(); err == nil && flushErr != nil {
		err = fmt.Errorf("write output: %w", flushErr)
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		printUsage(stderr)
	default:
		fmt.Fprintf(stderr, "frost: %v\n", err)
	}
	return 1
}

func dispatch(argv []string, stdin io.Reader, out io.Writer, stderr io.Writer) error {
	options := frost.DefaultOptions()
	args := []string{}
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if arg == "-config" || arg == "--config" {
			if i+1 >= len(argv) {
				return fmt.Errorf("%s: missing file name", arg)
			}
			i++
			loaded, err := frost.LoadOptions(argv[i])
			if err != nil {
				return err //nolint:wrapcheck
			}
			options = loaded
			continue
		}
		args = append(args, arg)
	}
	if len(args) < 1 {
		return errUsage
	}
	codec := frost.New(options)

	cmd := args[0]
	rest := args[1:]
	path := ""
	if cmd == "extract" {
		if len(rest) < 1 {
			return errors.New("extract: missing path")
		}
		path = rest[0]
		rest = rest[1:]
	}

	input := stdin
	if len(rest) > 0 && rest[0] != "-" {
		f, err := os.Open(rest[0])
		if err != nil {
			return fmt.Errorf("open file: %w", err)
		}
		defer f.Close()
		input = f
	}

	switch cmd {
	case "beautify", "fmt":
		if err := codec.BeautifyStream(input, nil, out, nil); err != nil {
			return fmt.Errorf("beautify: %w", err)
		}
		fmt.Fprintln(out)
	case "parse":
		source, err := readAll(input)
		if err != nil {
			return err
		}
		tree, err := codec.Parse(source)
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		fmt.Fprintln(out, tree.String())
	case "extract":
		source, err := readAll(input)
		if err != nil {
			return err
		}
		return cmdExtract(codec, path, source, out)
	case "roundtrip":
		source, err := readAll(input)
		if err != nil {
			return err
		}
		result, err := codec.Defrost(source)
		if err != nil {
			return fmt.Errorf("defrost: %w", err)
		}
		text, err := codec.Freeze(result)
		if err != nil {
			return fmt.Errorf("freeze: %w", err)
		}
		fmt.Fprintln(out, codec.Beautify(text))
	case "help", "-h", "--help":
		printUsage(stderr)
	default:
		fmt.Fprintf(stderr, "frost: unknown command: %s\n", cmd)
		return errUsage
	}
	return nil
}

// Print each value found at `path`. Values found before an error are still printed.
func cmdExtract(codec *frost.Codec, path string, source string, out io.Writer) error {
	seq, err := frost.DefrostFromPath[any](codec, path, source)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	for found, err := range seq {
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		text, err := codec.Freeze(found)
		if err != nil {
			return fmt.Errorf("freeze: %w", err)
		}
		fmt.Fprintln(out, text)
	}
	return nil
}

func readAll(r io.Reader) (string, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(buf), nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `frost - JSON freeze/defrost CLI tool

Usage:
  frost [-config file.yaml] beautify [file]        Pretty-print JSON
  frost [-config file.yaml] parse [file]           Parse JSON and print it compact
  frost [-config file.yaml] extract PATH [file]    Print every value found at a dotted path
  frost [-config file.yaml] roundtrip [file]       Defrost then freeze again

If no file is given, reads from stdin.
`)
}
