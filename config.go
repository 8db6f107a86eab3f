package memquota

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/viant/memquota/service/monitor"
)

// Config is a serialisable representation of the quota configuration. It can
// be populated from JSON or YAML; the zero-value is useful - all nested
// fields inherit their package defaults.
type Config struct {
	// Buckets lists every quota domain, one per task needing a ceiling. The
	// set is fixed configuration: buckets are created at start-up and never
	// renegotiated at runtime.
	Buckets []BucketConfig `json:"buckets" yaml:"buckets"`

	Heap    HeapConfig     `json:"heap" yaml:"heap"`
	Monitor monitor.Config `json:"monitor" yaml:"monitor"`
}

// BucketConfig is one {bucketId, ceilingBytes} pair.
type BucketConfig struct {
	ID           string `json:"id" yaml:"id"`
	CeilingBytes int    `json:"ceilingBytes" yaml:"ceilingBytes"`
}

// HeapConfig configures the built-in in-memory heap. It is ignored when a
// custom heap is supplied via WithHeap.
type HeapConfig struct {
	CapacityBytes int `json:"capacityBytes" yaml:"capacityBytes"`
}

// DefaultConfig returns a Config populated with the package defaults; callers
// may modify the returned struct before passing it to New.
func DefaultConfig() *Config {
	return &Config{
		Heap:    HeapConfig{CapacityBytes: 64 * 1024},
		Monitor: monitor.DefaultConfig(),
	}
}

// Validate returns an aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	seen := map[string]bool{}
	for i, bucket := range c.Buckets {
		if bucket.ID == "" {
			return fmt.Errorf("buckets[%d].id is empty", i)
		}
		if seen[bucket.ID] {
			return fmt.Errorf("buckets[%d].id %q is duplicated", i, bucket.ID)
		}
		seen[bucket.ID] = true
		if bucket.CeilingBytes <= 0 {
			return fmt.Errorf("buckets[%d] %q: ceilingBytes must be > 0", i, bucket.ID)
		}
	}
	if c.Heap.CapacityBytes < 0 {
		return fmt.Errorf("heap.capacityBytes must be >= 0")
	}
	return nil
}

// LoadConfig reads and parses a YAML configuration from the supplied URL
// (file path, file://, mem://, s3:// ... - any scheme the afs service
// supports).
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %v: %w", URL, err)
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return ret, nil
}
