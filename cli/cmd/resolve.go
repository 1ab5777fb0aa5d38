package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	rdconfig "github.com/pithecene-io/rdint/cli/config"
)

// Precedence for every run setting: an explicitly set flag wins, then a
// non-zero config value, then the flag default.

func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) || cfgVal == "" {
		return c.String(name)
	}
	return cfgVal
}

func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int(name)
	}
	return cfgVal
}

func resolveInt64(c *cli.Context, name string, cfgVal int64) int64 {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int64(name)
	}
	return cfgVal
}

func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) || !cfgVal {
		return c.Bool(name)
	}
	return true
}

func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Duration(name)
	}
	return cfgVal
}

func resolveStrings(c *cli.Context, name string, cfgVal []string) []string {
	if c.IsSet(name) || len(cfgVal) == 0 {
		return c.StringSlice(name)
	}
	return cfgVal
}

// configVal reads a field from an optional config.
func configVal[T any](cfg *rdconfig.Config, get func(*rdconfig.Config) T) T {
	if cfg == nil {
		var zero T
		return zero
	}
	return get(cfg)
}

// loadConfig loads --config, or the first default file in the working
// directory when --config is absent. No file yields a nil config.
func loadConfig(c *cli.Context) (*rdconfig.Config, error) {
	path := c.String("config")
	if path == "" {
		path = rdconfig.Discover(".")
		if path == "" {
			return nil, nil
		}
	}
	return rdconfig.Load(path)
}
