package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFlagsOnly(t *testing.T) {
	args := []string{
		"-http-port", "8080",
		"-starting-input", "cam1",
		"-log", "debug",
		"-input.cam1.source", "srt://in",
		"-input.cam1.sink", "srt://out",
		"-output.source", "mem://out-src",
		"-output.sink", "mem://out-sink",
		"-output.ts_adjustment", "-42",
	}

	cfg, err := Load(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 8080 {
		t.Fatalf("got port %d, want 8080", cfg.HTTPPort)
	}
	if cfg.StartingInput != "cam1" {
		t.Fatalf("got starting input %q, want cam1", cfg.StartingInput)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("got log level %v, want debug", cfg.LogLevel)
	}
	if len(cfg.Inputs) != 1 || cfg.Inputs[0].Name != "cam1" {
		t.Fatalf("got inputs %+v, want one named cam1", cfg.Inputs)
	}
	if cfg.Inputs[0].Source != "srt://in" || cfg.Inputs[0].Sink != "srt://out" {
		t.Fatalf("got input %+v, unexpected source/sink", cfg.Inputs[0])
	}
	if cfg.Output.TSAdjustment != -42 {
		t.Fatalf("got ts adjustment %d, want -42", cfg.Output.TSAdjustment)
	}
}

func TestLoadConfigFileFillsInMissingFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metamix.conf")
	contents := `# comment line, ignored

http-address = 127.0.0.1
input.cam1.source = srt://in1
input.cam1.sink = srt://out1
input.cam2.source = srt://in2
input.cam2.sink = srt://out2
output.source = mem://out-src
output.sink = mem://out-sink
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load([]string{"-config-file", path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddress != "127.0.0.1" {
		t.Fatalf("got http address %q, want 127.0.0.1", cfg.HTTPAddress)
	}
	if len(cfg.Inputs) != 2 {
		t.Fatalf("got %d inputs, want 2", len(cfg.Inputs))
	}
	if cfg.Output.Source != "mem://out-src" || cfg.Output.Sink != "mem://out-sink" {
		t.Fatalf("got output %+v, unexpected", cfg.Output)
	}
}

func TestLoadFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metamix.conf")
	contents := `http-address = 10.0.0.1
input.cam1.source = srt://file-src
input.cam1.sink = srt://file-sink
output.source = mem://file-out-src
output.sink = mem://file-out-sink
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load([]string{
		"-config-file", path,
		"-http-address", "192.168.1.1",
		"-input.cam1.source", "srt://cmdline-src",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddress != "192.168.1.1" {
		t.Fatalf("got http address %q, want the command-line value to win", cfg.HTTPAddress)
	}
	if len(cfg.Inputs) != 1 {
		t.Fatalf("got %d inputs, want 1", len(cfg.Inputs))
	}
	if cfg.Inputs[0].Source != "srt://cmdline-src" {
		t.Fatalf("got source %q, want the command-line value to win", cfg.Inputs[0].Source)
	}
	if cfg.Inputs[0].Sink != "srt://file-sink" {
		t.Fatalf("got sink %q, want the config-file value to fill the gap", cfg.Inputs[0].Sink)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		Inputs: []Input{
			{Name: "clear", Source: "x", Sink: "y"},
			{Name: "cam1"},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("got %T, want *ValidationError", err)
	}
	// reserved name, missing source, missing sink, missing output source,
	// missing output sink: five distinct problems reported together.
	if len(verr.Problems) != 5 {
		t.Fatalf("got %d problems, want 5: %v", len(verr.Problems), verr.Problems)
	}
}

func TestValidatePassesOnWellFormedConfig(t *testing.T) {
	cfg := &Config{
		Inputs: []Input{{Name: "cam1", Source: "a", Sink: "b"}},
		Output: Output{Source: "c", Sink: "d"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestToInputSpecsAssignsIDsStartingAtOne(t *testing.T) {
	cfg := &Config{
		Inputs: []Input{
			{Name: "cam1", Source: "a", Sink: "b"},
			{Name: "cam2", Source: "c", Sink: "d"},
		},
	}
	specs := cfg.ToInputSpecs()
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}
	if specs[0].ID != 1 || specs[1].ID != 2 {
		t.Fatalf("got ids %d, %d, want 1, 2 (0 is reserved for clear)", specs[0].ID, specs[1].ID)
	}
}
