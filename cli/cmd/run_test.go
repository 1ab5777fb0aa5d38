package cmd

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	rdconfig "github.com/pithecene-io/rdint/cli/config"
	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/policy"
	"github.com/pithecene-io/rdint/runtime"
	"github.com/pithecene-io/rdint/stream"
	"github.com/pithecene-io/rdint/trace"
	"github.com/pithecene-io/rdint/types"
)

// Limits span (0,0)-(1000,2000); the head moves to (10,20), then cuts to
// (15,25) and (100,0).
var (
	limitsMin = []byte{0xE7, 0x03, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	limitsMax = []byte{0xE7, 0x07, 0, 0, 0, 0x07, 0x68, 0, 0, 0, 0x0F, 0x50}
	moveAbs   = []byte{0x88, 0, 0, 0, 0, 0x0A, 0, 0, 0, 0, 0x14}
	layer0    = []byte{0xCA, 0x02, 0x00}
	cutRel    = []byte{0xA9, 0x00, 0x05, 0x00, 0x05}
	cutAbs    = []byte{0xA8, 0, 0, 0, 0, 0x64, 0, 0, 0, 0, 0}
)

func validProgram() []byte {
	return stream.Encode(limitsMin, limitsMax, moveAbs, layer0, cutRel, cutAbs)
}

func writeRD(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// --- Config precedence ---

// newTestCLIContext builds a minimal *cli.Context with the given flags set.
// flagValues are marked as explicitly set; defaultFlags are only registered.
func newTestCLIContext(t *testing.T, flagValues map[string]string, defaultFlags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	allFlags := make(map[string]string)
	for k, v := range defaultFlags {
		allFlags[k] = v
	}
	for k, v := range flagValues {
		allFlags[k] = v
	}

	var cliFlags []cli.Flag
	for name, val := range allFlags {
		cliFlags = append(cliFlags, &cli.StringFlag{Name: name, Value: val})
	}
	app.Flags = cliFlags

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name, val := range allFlags {
		fs.String(name, val, "")
	}
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestResolveString_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"source": "cli-val"}, nil)
	if got := resolveString(c, "source", "config-val"); got != "cli-val" {
		t.Errorf("expected CLI to win, got %q", got)
	}
}

func TestResolveString_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"source": ""})
	if got := resolveString(c, "source", "config-val"); got != "config-val" {
		t.Errorf("expected config fallback, got %q", got)
	}
}

func TestResolveString_UrfaveDefault(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"policy": "strict"})
	if got := resolveString(c, "policy", ""); got != "strict" {
		t.Errorf("expected urfave default, got %q", got)
	}
}

func TestConfigVal_NilConfig(t *testing.T) {
	got := configVal(nil, func(c *rdconfig.Config) string { return c.Source })
	if got != "" {
		t.Errorf("expected empty for nil config, got %q", got)
	}
}

func TestConfigVal_NonNil(t *testing.T) {
	cfg := &rdconfig.Config{Source: "from-config"}
	got := configVal(cfg, func(c *rdconfig.Config) string { return c.Source })
	if got != "from-config" {
		t.Errorf("expected from-config, got %q", got)
	}
}

func TestResolveInt_CLIWins(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.IntFlag{Name: "buffer-records"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("buffer-records", 0, "")
	_ = fs.Set("buffer-records", "500")
	c := cli.NewContext(app, fs, nil)

	if got := resolveInt(c, "buffer-records", 1000); got != 500 {
		t.Errorf("expected CLI to win with 500, got %d", got)
	}
}

func TestResolveInt_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.IntFlag{Name: "buffer-records"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("buffer-records", 0, "")
	c := cli.NewContext(app, fs, nil)

	if got := resolveInt(c, "buffer-records", 1000); got != 1000 {
		t.Errorf("expected config fallback 1000, got %d", got)
	}
}

func TestResolveBool_CLIWins(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.BoolFlag{Name: "storage-s3-path-style"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("storage-s3-path-style", false, "")
	_ = fs.Set("storage-s3-path-style", "true")
	c := cli.NewContext(app, fs, nil)

	if !resolveBool(c, "storage-s3-path-style", false) {
		t.Error("expected CLI true to win")
	}
}

func TestResolveBool_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.BoolFlag{Name: "autocrop"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("autocrop", false, "")
	c := cli.NewContext(app, fs, nil)

	if !resolveBool(c, "autocrop", true) {
		t.Error("expected config true when the flag is unset")
	}
}

func TestResolveDuration_CLIWins(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "adapter-timeout"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("adapter-timeout", 0, "")
	_ = fs.Set("adapter-timeout", "30s")
	c := cli.NewContext(app, fs, nil)

	if got := resolveDuration(c, "adapter-timeout", 10*time.Second); got != 30*time.Second {
		t.Errorf("expected CLI 30s to win, got %v", got)
	}
}

func TestResolveDuration_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "adapter-timeout"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("adapter-timeout", 0, "")
	c := cli.NewContext(app, fs, nil)

	if got := resolveDuration(c, "adapter-timeout", 10*time.Second); got != 10*time.Second {
		t.Errorf("expected config fallback 10s, got %v", got)
	}
}

// --- Policy and storage validation ---

func TestValidatePolicyConfig(t *testing.T) {
	tests := []struct {
		name        string
		choice      policyChoice
		wantErr     bool
		errContains string
	}{
		{name: "strict", choice: policyChoice{name: policy.NameStrict}},
		{name: "noop", choice: policyChoice{name: policy.NameNoop}},
		{name: "buffered with defaults", choice: policyChoice{name: policy.NameBuffered}},
		{name: "buffered with limits", choice: policyChoice{name: policy.NameBuffered, maxRecords: 100, maxBytes: 1 << 20}},
		{
			name:        "buffered negative",
			choice:      policyChoice{name: policy.NameBuffered, maxRecords: -1},
			wantErr:     true,
			errContains: "--buffer-records",
		},
		{name: "streaming count", choice: policyChoice{name: policy.NameStreaming, flushCount: 10}},
		{
			name:        "streaming negative interval",
			choice:      policyChoice{name: policy.NameStreaming, flushInterval: -time.Second},
			wantErr:     true,
			errContains: "--flush-interval",
		},
		{
			name:        "unknown policy lists options",
			choice:      policyChoice{name: "lossy"},
			wantErr:     true,
			errContains: "Valid options: strict, buffered, streaming, noop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePolicyConfig(tt.choice)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateStorageConfig(t *testing.T) {
	dir := t.TempDir()
	file := writeRD(t, dir, "plain.rd", []byte{0})

	tests := []struct {
		name        string
		config      storageChoice
		errContains []string
	}{
		{name: "fs with directory", config: storageChoice{backend: "fs", path: dir}},
		{
			name:        "fs nonexistent suggests mkdir",
			config:      storageChoice{backend: "fs", path: filepath.Join(dir, "missing")},
			errContains: []string{"does not exist", "mkdir -p"},
		},
		{
			name:        "fs file",
			config:      storageChoice{backend: "fs", path: file},
			errContains: []string{"not a directory"},
		},
		{name: "s3 with path", config: storageChoice{backend: "s3", path: "bucket/prefix"}},
		{
			name:        "s3 without path explains format",
			config:      storageChoice{backend: "s3"},
			errContains: []string{"--storage-path required", "bucket-name", "Format:"},
		},
		{
			name:        "invalid backend lists options",
			config:      storageChoice{backend: "gcs", path: dir},
			errContains: []string{"invalid --storage-backend", "Valid options: fs, s3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStorageConfig(tt.config)
			if len(tt.errContains) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, must := range tt.errContains {
				if !strings.Contains(err.Error(), must) {
					t.Errorf("error %q should contain %q", err.Error(), must)
				}
			}
		})
	}
}

func TestBuildStoragePath_FS(t *testing.T) {
	sc := storageChoice{backend: "fs", path: "/var/rdint/archive"}
	got := buildStoragePath(sc, "rdint", "cutter-1", "2026-02-08", "run-001")

	if !strings.HasPrefix(got, "file:///") {
		t.Errorf("fs path should start with file:///, got %q", got)
	}
	for _, segment := range []string{
		"datasets/rdint/partitions",
		"source=cutter-1",
		"day=2026-02-08",
		"run_id=run-001",
	} {
		if !strings.Contains(got, segment) {
			t.Errorf("fs path should contain %q, got %q", segment, got)
		}
	}
}

func TestBuildStoragePath_S3(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"my-bucket/rd-data", "s3://my-bucket/rd-data/datasets/rdint/partitions/source=src/day=2026-01-01/run_id=run-x"},
		{"my-bucket", "s3://my-bucket/datasets/rdint/partitions/source=src/day=2026-01-01/run_id=run-x"},
	}
	for _, tt := range tests {
		got := buildStoragePath(storageChoice{backend: "s3", path: tt.path}, "rdint", "src", "2026-01-01", "run-x")
		if got != tt.want {
			t.Errorf("buildStoragePath(%q):\ngot  %q\nwant %q", tt.path, got, tt.want)
		}
	}
}

func TestBuildStoragePath_UnknownBackend(t *testing.T) {
	got := buildStoragePath(storageChoice{backend: "gcs", path: "/tmp"}, "rdint", "src", "2026-01-01", "run-x")
	if strings.Contains(got, "://") {
		t.Errorf("unknown backend should not include scheme, got %q", got)
	}
	if !strings.HasPrefix(got, "datasets/") {
		t.Errorf("unknown backend should return bare partition path, got %q", got)
	}
}

// --- Adapter config ---

func newAdapterTestContext(t *testing.T, flags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "adapter-url"},
		&cli.StringFlag{Name: "adapter-channel"},
		&cli.DurationFlag{Name: "adapter-timeout"},
		&cli.IntFlag{Name: "adapter-retries", Value: 3},
		&cli.StringSliceFlag{Name: "adapter-header"},
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("adapter-url", "", "")
	fs.String("adapter-channel", "", "")
	fs.Duration("adapter-timeout", 0, "")
	fs.Int("adapter-retries", 3, "")
	for name, val := range flags {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}
	return cli.NewContext(app, fs, nil)
}

func TestParseAdapterConfig_WebhookValid(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{"adapter-url": "https://hooks.example.com/rdint"})

	ac, err := parseAdapterConfigWithPrecedence(c, nil, "webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.adapterType != "webhook" || ac.url != "https://hooks.example.com/rdint" {
		t.Errorf("got %+v", ac)
	}
	if ac.retries != 3 {
		t.Errorf("retries = %d, want default 3", ac.retries)
	}
}

func TestParseAdapterConfig_MissingURL(t *testing.T) {
	c := newAdapterTestContext(t, nil)

	_, err := parseAdapterConfigWithPrecedence(c, nil, "redis")
	if err == nil {
		t.Fatal("expected error for missing URL")
	}
	if !strings.Contains(err.Error(), "--adapter-url is required") {
		t.Errorf("error should mention --adapter-url, got: %v", err)
	}
}

func TestParseAdapterConfig_UnknownType(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{"adapter-url": "https://example.com"})

	_, err := parseAdapterConfigWithPrecedence(c, nil, "kafka")
	if err == nil || !strings.Contains(err.Error(), "Valid options: webhook, redis") {
		t.Errorf("expected options list, got %v", err)
	}
}

func TestParseAdapterConfig_ConfigFallback(t *testing.T) {
	c := newAdapterTestContext(t, nil)
	retries := 7
	cfg := &rdconfig.Config{
		Adapter: rdconfig.AdapterConfig{
			URL:     "redis://localhost:6379",
			Channel: "cutters",
			Timeout: rdconfig.Duration{Duration: 2 * time.Second},
			Retries: &retries,
		},
	}

	ac, err := parseAdapterConfigWithPrecedence(c, cfg, "redis")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.url != "redis://localhost:6379" || ac.channel != "cutters" {
		t.Errorf("config values not used: %+v", ac)
	}
	if ac.timeout != 2*time.Second {
		t.Errorf("timeout = %v, want 2s", ac.timeout)
	}
	if ac.retries != 7 {
		t.Errorf("retries = %d, want 7", ac.retries)
	}
}

func TestParseAdapterConfig_CLIOverridesConfigURL(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{"adapter-url": "https://cli.example.com"})
	cfg := &rdconfig.Config{Adapter: rdconfig.AdapterConfig{URL: "https://config.example.com"}}

	ac, err := parseAdapterConfigWithPrecedence(c, cfg, "webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.url != "https://cli.example.com" {
		t.Errorf("url = %q, want CLI value", ac.url)
	}
}

func TestParseAdapterConfig_HeadersMerged(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "adapter-url"},
		&cli.StringFlag{Name: "adapter-channel"},
		&cli.DurationFlag{Name: "adapter-timeout"},
		&cli.IntFlag{Name: "adapter-retries", Value: 3},
		&cli.StringSliceFlag{Name: "adapter-header"},
	}
	cfg := &rdconfig.Config{
		Adapter: rdconfig.AdapterConfig{
			Headers: map[string]string{"X-Api-Key": "from-config", "X-Site": "shop"},
		},
	}

	var ac *adapterChoice
	var parseErr error
	app.Action = func(c *cli.Context) error {
		ac, parseErr = parseAdapterConfigWithPrecedence(c, cfg, "webhook")
		return nil
	}
	_ = app.Run([]string{"test",
		"--adapter-url", "https://example.com",
		"--adapter-header", "X-Api-Key=from-cli",
	})

	if parseErr != nil {
		t.Fatalf("unexpected error: %v", parseErr)
	}
	if ac.headers["X-Api-Key"] != "from-cli" {
		t.Errorf("CLI header should override config, got %v", ac.headers)
	}
	if ac.headers["X-Site"] != "shop" {
		t.Errorf("config header not merged, got %v", ac.headers)
	}
}

func TestParseAdapterConfig_MalformedHeader(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "adapter-url"},
		&cli.StringSliceFlag{Name: "adapter-header"},
		&cli.DurationFlag{Name: "adapter-timeout"},
		&cli.IntFlag{Name: "adapter-retries", Value: 3},
		&cli.StringFlag{Name: "adapter-channel"},
	}

	var parseErr error
	app.Action = func(c *cli.Context) error {
		_, parseErr = parseAdapterConfigWithPrecedence(c, nil, "webhook")
		return nil
	}
	_ = app.Run([]string{"test",
		"--adapter-url", "https://example.com",
		"--adapter-header", "no-equals-sign",
	})

	if parseErr == nil {
		t.Fatal("expected error for malformed header")
	}
	if !strings.Contains(parseErr.Error(), "invalid --adapter-header") || !strings.Contains(parseErr.Error(), "key=value") {
		t.Errorf("error should name the flag and format, got: %v", parseErr)
	}
}

// --- Option resolution through the run command ---

// resolveViaApp parses args with the run command's flags and returns the
// resolved options without running.
func resolveViaApp(t *testing.T, args ...string) (*runOptions, error) {
	t.Helper()
	cmd := RunCommand()
	var opts *runOptions
	var resolveErr error
	cmd.Action = func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			resolveErr = err
			return nil
		}
		opts, resolveErr = resolveRunOptions(c, cfg)
		return nil
	}
	app := cli.NewApp()
	app.Commands = []*cli.Command{cmd}
	app.ExitErrHandler = func(*cli.Context, error) {}
	if err := app.Run(append([]string{"rdint", "run"}, args...)); err != nil {
		return nil, err
	}
	return opts, resolveErr
}

func TestResolveRunOptions_Defaults(t *testing.T) {
	input := writeRD(t, t.TempDir(), "badge.rd", validProgram())

	opts, err := resolveViaApp(t, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.runID == "" {
		t.Error("run id should default to a generated UUID")
	}
	if opts.source != "badge" {
		t.Errorf("source = %q, want input base name", opts.source)
	}
	if opts.policy.name != policy.NameNoop {
		t.Errorf("policy = %q, want noop without any trace destination", opts.policy.name)
	}
	if opts.unit != metrics.UnitMM || opts.level != zapcore.InfoLevel || opts.list {
		t.Errorf("unexpected defaults: unit=%s level=%s list=%v", opts.unit, opts.level, opts.list)
	}
	if opts.traceCodec != trace.CodecMsgpack {
		t.Errorf("codec = %s, want msgpack", opts.traceCodec.Name())
	}
}

func TestResolveRunOptions_MissingInput(t *testing.T) {
	_, err := resolveViaApp(t)
	if err == nil || !strings.Contains(err.Error(), "exactly one RD file is required") {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestResolveRunOptions_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	input := writeRD(t, dir, "job.rd", validProgram())
	tracePath := filepath.Join(dir, "job.trace")
	cfgPath := filepath.Join(dir, "rdint.yaml")
	yaml := `source: cutter-7
autocrop: true
clip: "0x0x500x500"
breakpoints: ["0x1a", "2d"]
find: "a8"
trace:
  path: ` + tracePath + `
  codec: cbor
policy:
  name: buffered
  buffer_records: 64
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := resolveViaApp(t, "--config", cfgPath, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.source != "cutter-7" || !opts.autocrop {
		t.Errorf("config values not applied: source=%q autocrop=%v", opts.source, opts.autocrop)
	}
	if !opts.clip.Present || opts.clip.Max.X != 500 {
		t.Errorf("clip = %s, want 0 0 500 500", opts.clip)
	}
	if len(opts.breakpoints) != 2 || opts.breakpoints[0] != 0x1a || opts.breakpoints[1] != 0x2d {
		t.Errorf("breakpoints = %v", opts.breakpoints)
	}
	if opts.tracePath != tracePath || opts.traceCodec != trace.CodecCBOR {
		t.Errorf("trace = %q (%s)", opts.tracePath, opts.traceCodec.Name())
	}
	if opts.policy.name != policy.NameBuffered || opts.policy.maxRecords != 64 {
		t.Errorf("policy = %+v", opts.policy)
	}
}

func TestResolveRunOptions_CLIOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	input := writeRD(t, dir, "job.rd", validProgram())
	cfgPath := filepath.Join(dir, "rdint.toml")
	toml := "source = \"from-config\"\nverbosity = \"warn\"\n"
	if err := os.WriteFile(cfgPath, []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := resolveViaApp(t, "--config", cfgPath, "--source", "from-cli", "-d", "debug", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.source != "from-cli" {
		t.Errorf("source = %q, want from-cli", opts.source)
	}
	if opts.level != zapcore.DebugLevel || !opts.list {
		t.Errorf("debug verbosity should enable listing, level=%s list=%v", opts.level, opts.list)
	}
}

func TestResolveRunOptions_ConfigFileNotFound(t *testing.T) {
	input := writeRD(t, t.TempDir(), "job.rd", validProgram())

	_, err := resolveViaApp(t, "--config", "/nonexistent/rdint.yaml", input)
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestResolveRunOptions_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	input := writeRD(t, dir, "job.rd", validProgram())

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"find", []string{"--find", "zz"}, "invalid --find"},
		{"breakpoint", []string{"--break", "0"}, "must be greater than 0"},
		{"unit", []string{"--unit", "furlong"}, "unknown unit"},
		{"verbosity", []string{"-d", "loud"}, "unknown verbosity"},
		{"codec", []string{"--trace-codec", "gob"}, "gob"},
		{"storage", []string{"--storage-path", filepath.Join(dir, "missing")}, "does not exist"},
		{"clip", []string{"-c", "10x"}, "invalid clip"},
		{"adapter", []string{"--adapter", "webhook"}, "--adapter-url is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveViaApp(t, append(tt.args, input)...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestResolveRunOptions_StoragePathDefaultsToFS(t *testing.T) {
	dir := t.TempDir()
	input := writeRD(t, dir, "job.rd", validProgram())

	opts, err := resolveViaApp(t, "--storage-path", dir, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.storage.backend != "fs" {
		t.Errorf("backend = %q, want fs", opts.storage.backend)
	}
	if opts.policy.name != policy.NameStrict {
		t.Errorf("policy = %q, want strict when archiving", opts.policy.name)
	}
}

// --- End-to-end runs ---

func baseOptions(input string) *runOptions {
	return &runOptions{
		input:      input,
		runID:      "run-1",
		source:     "cutter",
		level:      zapcore.InfoLevel,
		unit:       metrics.UnitMM,
		traceCodec: trace.CodecMsgpack,
		storage:    storageChoice{dataset: "rdint"},
		policy:     policyChoice{name: policy.NameStrict},
	}
}

type runBuffers struct {
	out, errOut bytes.Buffer
}

func (b *runBuffers) io(in string) runIO {
	return runIO{in: strings.NewReader(in), out: &b.out, errOut: &b.errOut}
}

func TestExecuteRun_FullPipeline(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "archive")
	if err := os.Mkdir(archive, 0o755); err != nil {
		t.Fatal(err)
	}

	opts := baseOptions(writeRD(t, dir, "job.rd", validProgram()))
	opts.vectorOut = filepath.Join(dir, "job.svg")
	opts.tracePath = filepath.Join(dir, "job.trace")
	opts.traceDB = filepath.Join(dir, "job.db")
	opts.reportPath = filepath.Join(dir, "report.json")
	opts.storage = storageChoice{backend: "fs", path: archive, dataset: "rdint"}

	var buf runBuffers
	result, err := executeRun(context.Background(), opts, buf.io(""))
	if err != nil {
		t.Fatalf("executeRun failed: %v", err)
	}
	if result.Outcome.Status != types.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", result.Outcome.Status, result.Outcome.Message)
	}
	if result.Records != 6 {
		t.Errorf("records = %d, want 6", result.Records)
	}

	for _, p := range []string{opts.vectorOut, opts.tracePath, opts.traceDB, opts.reportPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
	archived, _ := filepath.Glob(filepath.Join(archive, "datasets", "rdint", "partitions", "source=cutter", "*", "run_id=run-1", "files", "*"))
	if len(archived) != 3 {
		t.Errorf("archived files = %v, want svg, trace and db", archived)
	}
	if !strings.Contains(buf.out.String(), "VECTOR\t| work length=") {
		t.Errorf("statistics not printed:\n%s", buf.out.String())
	}
	if !strings.Contains(buf.errOut.String(), "outcome:      success") {
		t.Errorf("summary not printed:\n%s", buf.errOut.String())
	}
}

func TestExecuteRun_ExportFailureKeepsOtherOutput(t *testing.T) {
	dir := t.TempDir()
	opts := baseOptions(writeRD(t, dir, "job.rd", validProgram()))
	opts.vectorOut = filepath.Join(dir, "job.svg")
	opts.rasterOut = filepath.Join(dir, "missing", "job.png")

	var buf runBuffers
	result, err := executeRun(context.Background(), opts, buf.io(""))
	if err != nil {
		t.Fatalf("executeRun failed: %v", err)
	}
	if result.Outcome.Status != types.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", result.Outcome.Status, result.Outcome.Message)
	}
	if _, err := os.Stat(opts.vectorOut); err != nil {
		t.Errorf("vector output missing: %v", err)
	}
	if _, err := os.Stat(opts.rasterOut); !os.IsNotExist(err) {
		t.Errorf("raster output should not exist, stat err = %v", err)
	}
}

func TestExecuteRun_InvalidStreamExportsNothing(t *testing.T) {
	dir := t.TempDir()
	opts := baseOptions(writeRD(t, dir, "bad.rd", stream.Encode(limitsMin, layer0)))
	opts.vectorOut = filepath.Join(dir, "bad.svg")

	var buf runBuffers
	result, err := executeRun(context.Background(), opts, buf.io(""))
	if err != nil {
		t.Fatalf("executeRun failed: %v", err)
	}
	if result.Outcome.Status != types.OutcomeInvalid {
		t.Fatalf("outcome = %s, want invalid", result.Outcome.Status)
	}
	if runtime.ExitCodeFor(result.Outcome.Status) != 1 {
		t.Error("invalid stream should exit 1")
	}
	if _, err := os.Stat(opts.vectorOut); !os.IsNotExist(err) {
		t.Errorf("vector output should not exist, stat err = %v", err)
	}
	if !strings.Contains(buf.errOut.String(), "invalid stream: end of file reached without any absolute moves") {
		t.Errorf("invalidation not reported:\n%s", buf.errOut.String())
	}
}

func TestExecuteRun_InteractiveQuit(t *testing.T) {
	opts := baseOptions(writeRD(t, t.TempDir(), "job.rd", validProgram()))
	opts.interactive = true
	opts.level = zapcore.ErrorLevel

	var buf runBuffers
	result, err := executeRun(context.Background(), opts, buf.io("quit\n"))
	if err != nil {
		t.Fatalf("executeRun failed: %v", err)
	}
	if result.Outcome.Status != types.OutcomeQuit {
		t.Errorf("outcome = %s, want quit", result.Outcome.Status)
	}
	if runtime.ExitCodeFor(result.Outcome.Status) != 2 {
		t.Error("quit should exit 2")
	}
}

func TestExecuteRun_InteractiveEOFRunsToCompletion(t *testing.T) {
	opts := baseOptions(writeRD(t, t.TempDir(), "job.rd", validProgram()))
	opts.interactive = true
	opts.level = zapcore.ErrorLevel

	var buf runBuffers
	result, err := executeRun(context.Background(), opts, buf.io(""))
	if err != nil {
		t.Fatalf("executeRun failed: %v", err)
	}
	if result.Outcome.Status != types.OutcomeSuccess {
		t.Errorf("outcome = %s, want success", result.Outcome.Status)
	}
}

func TestExecuteRun_ListsReplayedInstructions(t *testing.T) {
	opts := baseOptions(writeRD(t, t.TempDir(), "job.rd", validProgram()))
	opts.list = true
	opts.level = zapcore.ErrorLevel

	var buf runBuffers
	if _, err := executeRun(context.Background(), opts, buf.io("")); err != nil {
		t.Fatalf("executeRun failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.out.String()), "\n")
	if len(lines) != 6 {
		t.Fatalf("listed %d lines, want one per replayed instruction:\n%s", len(lines), buf.out.String())
	}
	if !strings.HasPrefix(lines[0], "0x00000002:") {
		t.Errorf("first line = %q, want offset 0x00000002", lines[0])
	}
}

func TestValidSignature(t *testing.T) {
	for sig, want := range map[string]bool{
		"a8":      true,
		"0xCA 02": true,
		"":        false,
		"zz":      false,
		"0x":      false,
	} {
		if got := validSignature(sig); got != want {
			t.Errorf("validSignature(%q) = %v, want %v", sig, got, want)
		}
	}
}
