// Package config loads this system's settings from a key=value file and a
// matching set of command-line flags, following the same two-source model
// as the original's program_options.cpp: flags always win over the file,
// and per-input settings (there being no fixed number of inputs) are
// recognized by pattern ("input.<name>.<field>") rather than individually
// declared, since neither the standard flag package nor anything in the
// retrieval pack offers a config/env library with that kind of dynamic key
// support.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/zsiec/metamix/internal/input"
)

// reservedInputName mirrors input.Registry's reservation of the name
// "clear" for the virtual clear input; Validate checks it here too so a
// misconfiguration is reported before anything tries to open a container.
const reservedInputName = "clear"

// Input is one configured, real input's settings, in the order first seen
// on the command line or in the config file.
type Input struct {
	Name         string
	Source       string
	Sink         string
	SourceFormat string
	SinkFormat   string
}

// Output is the single output's settings.
type Output struct {
	Source       string
	Sink         string
	SourceFormat string
	SinkFormat   string
	TSAdjustment int64
}

// Config is everything Load produces.
type Config struct {
	HTTPAddress string
	HTTPPort    uint16

	StartingInput string

	LogLevel  slog.Level
	LogThread string

	NoRestart bool

	Inputs []Input
	Output Output
}

// ValidationError reports that a loaded Config failed Validate; Problems
// holds one message per thing wrong with it, following the original's
// validate() which logs every problem before terminating rather than
// stopping at the first one.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid configuration: %s", strings.Join(e.Problems, "; "))
}

var logLevels = map[string]slog.Level{
	"trace":   slog.LevelDebug - 4,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
	"fatal":   slog.LevelError + 4,
}

// Load parses args (normally os.Args[1:]) as flags, optionally reads a
// config file named by -config-file/-c, and merges the two into a Config.
// Flags take precedence over the file for any key set in both.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("metamix", flag.ContinueOnError)

	configFile := fs.String("config-file", "", "load configuration from this key=value file")
	fs.StringVar(configFile, "c", *configFile, "shorthand for -config-file")

	httpAddress := fs.String("http-address", "0.0.0.0", "control surface listen address")
	httpPort := fs.Uint("http-port", 3445, "control surface listen port")
	startingInput := fs.String("starting-input", "", "name of the input initially selected")
	logLevel := fs.String("log", "info", "logging severity: trace, debug, info, warning, error, fatal")
	logThread := fs.String("log-thread", "", "only log messages tagged with this thread name")
	noRestart := fs.Bool("no-restart", false, "don't restart extractors/injector/control surface on exit")

	outputSource := fs.String("output.source", "", "output source url")
	outputSink := fs.String("output.sink", "", "output sink url")
	outputSourceFormat := fs.String("output.sourceformat", "", "output source format, or auto-detect")
	outputSinkFormat := fs.String("output.sinkformat", "", "output sink format, or auto-detect")
	outputTSAdjustment := fs.Int64("output.ts_adjustment", 0, "constant offset of injected metadata, in 90kHz ticks")

	// input.<name>.<field> flags aren't known ahead of time, so they're
	// collected from the raw args (and the config file) by pattern instead
	// of being declared on fs.
	inputArgs, rest := extractInputArgs(args)

	if err := fs.Parse(rest); err != nil {
		return nil, fmt.Errorf("config: parsing flags: %w", err)
	}

	inputs := map[string]*Input{}
	var order []string
	setFromCmdline := map[string]bool{}

	applyInputField := func(name, field, value string, fromCmdline bool) error {
		key := name + "\x00" + field
		if !fromCmdline && setFromCmdline[key] {
			// Flags take precedence: a config-file value never overrides
			// the same input field already set on the command line.
			return nil
		}
		if fromCmdline {
			setFromCmdline[key] = true
		}

		is, ok := inputs[name]
		if !ok {
			is = &Input{Name: name}
			inputs[name] = is
			order = append(order, name)
		}
		switch field {
		case "source":
			is.Source = value
		case "sink":
			is.Sink = value
		case "sourceformat":
			is.SourceFormat = value
		case "sinkformat":
			is.SinkFormat = value
		default:
			return fmt.Errorf("config: unknown input option %q", field)
		}
		return nil
	}

	for _, kv := range inputArgs {
		name, field, ok := splitInputKey(kv.key)
		if !ok {
			return nil, fmt.Errorf("config: unknown option %q", kv.key)
		}
		if err := applyInputField(name, field, kv.value, true); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		HTTPAddress:   *httpAddress,
		HTTPPort:      uint16(*httpPort),
		StartingInput: *startingInput,
		LogThread:     *logThread,
		NoRestart:     *noRestart,
		Output: Output{
			Source:       *outputSource,
			Sink:         *outputSink,
			SourceFormat: *outputSourceFormat,
			SinkFormat:   *outputSinkFormat,
			TSAdjustment: *outputTSAdjustment,
		},
	}

	level, ok := logLevels[*logLevel]
	if !ok {
		level = slog.LevelInfo
	}
	cfg.LogLevel = level

	if *configFile != "" {
		file, err := os.Open(*configFile)
		if err != nil {
			return nil, fmt.Errorf("config: opening config file: %w", err)
		}
		defer file.Close()

		fileKV, err := parseKVFile(file)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", *configFile, err)
		}
		for _, kv := range fileKV {
			if name, field, ok := splitInputKey(kv.key); ok {
				if err := applyInputField(name, field, kv.value, false); err != nil {
					return nil, err
				}
				continue
			}
			applyFileKey(cfg, kv.key, kv.value, fs)
		}
	}

	cfg.Inputs = make([]Input, 0, len(order))
	for _, name := range order {
		cfg.Inputs = append(cfg.Inputs, *inputs[name])
	}

	return cfg, nil
}

// applyFileKey fills in a top-level (non-input, non-output) setting from
// the config file, but only if the corresponding flag was never explicitly
// set on the command line — flags take precedence.
func applyFileKey(cfg *Config, key, value string, fs *flag.FlagSet) {
	setOnCmdline := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { setOnCmdline[f.Name] = true })

	switch key {
	case "http-address":
		if !setOnCmdline[key] {
			cfg.HTTPAddress = value
		}
	case "http-port":
		if !setOnCmdline[key] {
			if p, err := strconv.ParseUint(value, 10, 16); err == nil {
				cfg.HTTPPort = uint16(p)
			}
		}
	case "starting-input":
		if !setOnCmdline[key] {
			cfg.StartingInput = value
		}
	case "log":
		if !setOnCmdline[key] {
			if lvl, ok := logLevels[value]; ok {
				cfg.LogLevel = lvl
			}
		}
	case "log-thread":
		if !setOnCmdline[key] {
			cfg.LogThread = value
		}
	case "no-restart":
		if !setOnCmdline[key] {
			cfg.NoRestart = value == "" || value == "true" || value == "1"
		}
	case "output.source":
		if !setOnCmdline[key] {
			cfg.Output.Source = value
		}
	case "output.sink":
		if !setOnCmdline[key] {
			cfg.Output.Sink = value
		}
	case "output.sourceformat":
		if !setOnCmdline[key] {
			cfg.Output.SourceFormat = value
		}
	case "output.sinkformat":
		if !setOnCmdline[key] {
			cfg.Output.SinkFormat = value
		}
	case "output.ts_adjustment":
		if !setOnCmdline[key] {
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				cfg.Output.TSAdjustment = v
			}
		}
	}
}

type kv struct{ key, value string }

// extractInputArgs pulls every "-input.<name>.<field>=value" or
// "-input.<name>.<field> value" argument out of args, returning them
// separately and leaving the rest for flag.FlagSet.Parse, which would
// otherwise reject an -input.* flag it was never told to expect.
func extractInputArgs(args []string) (inputArgs []kv, rest []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		name := strings.TrimLeft(a, "-")
		if !strings.HasPrefix(name, "input.") {
			rest = append(rest, a)
			continue
		}
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			inputArgs = append(inputArgs, kv{key: name[:eq], value: name[eq+1:]})
			continue
		}
		if i+1 < len(args) {
			inputArgs = append(inputArgs, kv{key: name, value: args[i+1]})
			i++
		}
	}
	return inputArgs, rest
}

// splitInputKey splits "input.<name>.<field>" into its name and field.
func splitInputKey(key string) (name, field string, ok bool) {
	if !strings.HasPrefix(key, "input.") {
		return "", "", false
	}
	rest := strings.TrimPrefix(key, "input.")
	i := strings.LastIndexByte(rest, '.')
	if i < 0 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// parseKVFile reads "key=value" lines, skipping blanks and lines starting
// with '#'. Keys and values are trimmed of surrounding whitespace.
func parseKVFile(r io.Reader) ([]kv, error) {
	var out []kv
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed line %q, want key=value", line)
		}
		out = append(out, kv{key: strings.TrimSpace(key), value: strings.TrimSpace(value)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate reports every problem with cfg at once, mirroring the
// original's validate(): at least one real input, every input named and
// fully specified, output fully specified.
func (cfg *Config) Validate() error {
	var problems []string

	if len(cfg.Inputs) == 0 {
		problems = append(problems, "no input provided")
	}

	seen := map[string]bool{}
	for _, is := range cfg.Inputs {
		if is.Name == "" {
			problems = append(problems, "an input has a missing name")
			continue
		}
		if is.Name == reservedInputName {
			problems = append(problems, fmt.Sprintf("input name %q is reserved", reservedInputName))
			continue
		}
		if seen[is.Name] {
			problems = append(problems, fmt.Sprintf("duplicate input name %q", is.Name))
			continue
		}
		seen[is.Name] = true
		if is.Source == "" {
			problems = append(problems, fmt.Sprintf("input %q source missing", is.Name))
		}
		if is.Sink == "" {
			problems = append(problems, fmt.Sprintf("input %q sink missing", is.Name))
		}
	}

	if cfg.Output.Source == "" {
		problems = append(problems, "output source missing")
	}
	if cfg.Output.Sink == "" {
		problems = append(problems, "output sink missing")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ToInputSpecs assigns ids (starting at 1, since 0 is reserved for the
// virtual clear input) and converts the loaded inputs into input.Spec
// values ready for input.NewUserDefined.
func (cfg *Config) ToInputSpecs() []input.Spec {
	specs := make([]input.Spec, 0, len(cfg.Inputs))
	for i, is := range cfg.Inputs {
		specs = append(specs, input.Spec{
			ID:           input.ID(i + 1),
			Name:         is.Name,
			Source:       is.Source,
			Sink:         is.Sink,
			SourceFormat: is.SourceFormat,
			SinkFormat:   is.SinkFormat,
		})
	}
	return specs
}
