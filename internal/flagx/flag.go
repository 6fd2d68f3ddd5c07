// Package flagx lets several components parse their own subset of the
// command line without tripping over each other's flags.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the flags named in allowed (names without dashes)
// together with their values. Both "-name value" and "--name=value" forms are
// recognized, with one or two leading dashes.
func FilterArgs(args []string, allowed []string) []string {
	names := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		names[strings.TrimLeft(f, "-")] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		name, hasValue, ok := flagName(args[i])
		if !ok {
			continue
		}
		if _, keep := names[name]; !keep {
			continue
		}
		filtered = append(filtered, args[i])
		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// Positional returns the arguments that are neither flags nor values of the
// flags listed in withValue. The admin CLI uses it to find its subcommand.
func Positional(args []string, withValue []string) []string {
	names := make(map[string]struct{}, len(withValue))
	for _, f := range withValue {
		names[strings.TrimLeft(f, "-")] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		name, hasValue, ok := flagName(args[i])
		if !ok {
			out = append(out, args[i])
			continue
		}
		if _, takesValue := names[name]; takesValue && !hasValue {
			i++
		}
	}
	return out
}

// flagName splits "-a", "--addr" or "--addr=x" into its bare name and reports
// whether the value is inline.
func flagName(arg string) (name string, hasValue bool, ok bool) {
	if len(arg) < 2 || arg[0] != '-' {
		return "", false, false
	}
	trimmed := strings.TrimLeft(arg, "-")
	if trimmed == "" {
		return "", false, false
	}
	if i := strings.IndexByte(trimmed, '='); i >= 0 {
		return trimmed[:i], true, true
	}
	return trimmed, false, true
}

// ConfigPath returns the value of -c / -config from os.Args, or "".
func ConfigPath() string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(os.Args[1:], []string{"c", "config"}))

	return path
}
