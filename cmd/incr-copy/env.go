package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// envBindings maps flag names to the environment variables consulted when
// the flag is not given on the command line.
var envBindings = map[string]string{
	"marker-dir":       "CAI_MARKER_DIR",
	"marker-file-name": "CAI_MARKER_FILE_NAME",
	"watch-dir":        "CAI_WATCH_DIR",
	"output-dir":       "CAI_OUTPUT_DIR",
	"log-format":       "CAI_LOG_FORMAT",
	"log-level":        "CAI_LOG_LEVEL",
}

func applyEnv(flags *pflag.FlagSet, bindings map[string]string) error {
	for name, env := range bindings {
		flag := flags.Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}
		value, ok := os.LookupEnv(env)
		if !ok {
			continue
		}
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("invalid value %q for %s: %w", value, env, err)
		}
	}
	return nil
}
