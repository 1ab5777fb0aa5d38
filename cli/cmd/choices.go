package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rdint/adapter"
	"github.com/pithecene-io/rdint/adapter/redis"
	"github.com/pithecene-io/rdint/adapter/webhook"
	rdconfig "github.com/pithecene-io/rdint/cli/config"
	"github.com/pithecene-io/rdint/lode"
	"github.com/pithecene-io/rdint/policy"
)

// storageChoice selects where trace records, the run report and exported
// files are archived. An empty backend disables archiving.
type storageChoice struct {
	backend   string
	path      string
	dataset   string
	region    string
	endpoint  string
	pathStyle bool
}

func (s storageChoice) enabled() bool { return s.backend != "" }

func validateStorageConfig(s storageChoice) error {
	switch s.backend {
	case "fs":
		if s.path == "" {
			return errors.New("--storage-path required for fs backend\n  Format: /path/to/archive")
		}
		info, err := os.Stat(s.path)
		if os.IsNotExist(err) {
			return fmt.Errorf("storage path %q does not exist\n  Create it with: mkdir -p %s", s.path, s.path)
		}
		if err != nil {
			return fmt.Errorf("cannot access storage path %q: %w", s.path, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("storage path %q is not a directory", s.path)
		}
		return nil
	case "s3":
		if s.path == "" {
			return errors.New("--storage-path required for s3 backend\n  Format: bucket-name/optional/prefix")
		}
		return nil
	default:
		return fmt.Errorf("invalid --storage-backend %q\n  Valid options: fs, s3", s.backend)
	}
}

// buildLodeClient opens the archive for one run.
func buildLodeClient(ctx context.Context, s storageChoice, cfg lode.Config) (*lode.LodeClient, error) {
	switch s.backend {
	case "fs":
		return lode.NewLodeClient(cfg, s.path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(s.path)
		return lode.NewS3Client(ctx, cfg, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.region,
			Endpoint:     s.endpoint,
			UsePathStyle: s.pathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.backend)
	}
}

// buildStoragePath renders the run's archive location as a URI.
// Unknown backends yield the bare partition path.
func buildStoragePath(s storageChoice, dataset, source, day, runID string) string {
	partition := fmt.Sprintf("datasets/%s/partitions/source=%s/day=%s/run_id=%s", dataset, source, day, runID)
	switch s.backend {
	case "fs":
		root, err := filepath.Abs(s.path)
		if err != nil {
			root = s.path
		}
		return "file://" + filepath.ToSlash(filepath.Join(root, partition))
	case "s3":
		bucket, prefix := lode.ParseS3Path(s.path)
		if prefix == "" {
			return fmt.Sprintf("s3://%s/%s", bucket, partition)
		}
		return fmt.Sprintf("s3://%s/%s/%s", bucket, strings.Trim(prefix, "/"), partition)
	default:
		return partition
	}
}

// policyChoice selects the trace ingestion policy.
type policyChoice struct {
	name          string
	maxRecords    int
	maxBytes      int64
	flushCount    int
	flushInterval time.Duration
}

func validatePolicyConfig(p policyChoice) error {
	switch p.name {
	case policy.NameStrict, policy.NameNoop:
		return nil
	case policy.NameBuffered:
		if p.maxRecords < 0 || p.maxBytes < 0 {
			return errors.New("buffered policy limits must not be negative\n  Use --buffer-records and --buffer-bytes with values >= 0")
		}
		return nil
	case policy.NameStreaming:
		if p.flushCount < 0 || p.flushInterval < 0 {
			return errors.New("streaming policy triggers must not be negative\n  Use --flush-count and --flush-interval with values >= 0")
		}
		return nil
	default:
		return fmt.Errorf("invalid --policy %q\n  Valid options: strict, buffered, streaming, noop", p.name)
	}
}

// adapterChoice configures the run-completed notice.
type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	headers     map[string]string
	timeout     time.Duration
	retries     int
}

// parseAdapterConfigWithPrecedence resolves adapter settings from flags,
// then config. Config headers are merged under CLI headers.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *rdconfig.Config, adapterType string) (*adapterChoice, error) {
	switch adapterType {
	case "webhook", "redis":
	default:
		return nil, fmt.Errorf("invalid --adapter %q\n  Valid options: webhook, redis", adapterType)
	}

	ac := &adapterChoice{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", configVal(cfg, func(c *rdconfig.Config) string { return c.Adapter.URL })),
		channel:     resolveString(c, "adapter-channel", configVal(cfg, func(c *rdconfig.Config) string { return c.Adapter.Channel })),
		timeout:     resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *rdconfig.Config) time.Duration { return c.Adapter.Timeout.Duration })),
		retries:     c.Int("adapter-retries"),
		headers:     make(map[string]string),
	}
	if ac.url == "" {
		return nil, fmt.Errorf("--adapter-url is required when --adapter=%s", adapterType)
	}
	if !c.IsSet("adapter-retries") && cfg != nil && cfg.Adapter.Retries != nil {
		ac.retries = *cfg.Adapter.Retries
	}

	if cfg != nil {
		for k, v := range cfg.Adapter.Headers {
			ac.headers[k] = v
		}
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q: expected key=value", h)
		}
		ac.headers[strings.TrimSpace(k)] = v
	}
	return ac, nil
}

func buildAdapter(ac *adapterChoice) (adapter.Adapter, error) {
	switch ac.adapterType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     ac.url,
			Headers: ac.headers,
			Timeout: ac.timeout,
			Retries: ac.retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     ac.url,
			Channel: ac.channel,
			Timeout: ac.timeout,
			Retries: ac.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter %q", ac.adapterType)
	}
}
