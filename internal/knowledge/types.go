package knowledge

import "time"

// Record is a knowledge entry returned by similarity search.
// Title carries the entry title for general knowledge and the teacher's
// name for teacher knowledge.
type Record struct {
	ID         int64
	Title      string
	Content    string
	Category   string
	Metadata   map[string]string
	Similarity float32
	CreatedAt  time.Time
}

// SearchOption configures a similarity search using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int32
	timeout time.Duration
}

// WithTopK sets the maximum number of results. Default is 3.
func WithTopK(k int32) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithTimeout bounds the search query duration. Default is 10s.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    3,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
