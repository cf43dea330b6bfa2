package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink describes the minimal interface required to emit StatsD-style metrics.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Config describes how to connect to a StatsD-compatible sink.
type Config struct {
	Enabled    bool
	Address    string
	Prefix     string
	Logger     *slog.Logger
	GlobalTags map[string]string
}

const (
	dialTimeout = 5 * time.Second
	// maxLine keeps a single metric inside one unfragmented UDP datagram.
	maxLine = 1432
)

// Client writes DogStatsD lines over UDP. A nil client, or one built with
// Enabled=false, accepts every call and sends nothing.
type Client struct {
	prefix string
	global map[string]string
	logger *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

var _ Sink = (*Client)(nil)

// NewClient dials the configured StatsD endpoint unless disabled.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "."),
		global: cleanTags(cfg.GlobalTags),
		logger: logger.With("component", "statsd"),
	}

	addr := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || addr == "" {
		return c, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", addr, err)
	}
	c.conn = conn
	return c, nil
}

// Enabled reports whether the client actively emits metrics.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Count increments a counter metric.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.emit(name, strconv.AppendInt(nil, value, 10), "c", tags)
}

// Gauge records the current value for a gauge metric.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	c.emit(name, strconv.AppendFloat(nil, value, 'f', -1, 64), "g", tags)
}

// Timing records a duration in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	ms := float64(value) / float64(time.Millisecond)
	c.emit(name, strconv.AppendFloat(nil, ms, 'f', -1, 64), "ms", tags)
}

// Close releases the UDP connection if one was established.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) emit(name string, value []byte, kind string, tags map[string]string) {
	if c == nil {
		return
	}
	line := c.line(name, value, kind, tags)
	if line == nil {
		return
	}
	if len(line) > maxLine {
		c.logger.Debug("statsd line dropped, too long", "metric", name, "bytes", len(line))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if _, err := c.conn.Write(line); err != nil {
		c.logger.Debug("statsd write failed", "metric", name, "error", err)
	}
}

// line renders name:value|kind|#k:v,... or nil when name is empty.
func (c *Client) line(name string, value []byte, kind string, tags map[string]string) []byte {
	metric := MetricName(c.prefix, name)
	if metric == "" {
		return nil
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, metric...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	buf = append(buf, '|')
	buf = append(buf, kind...)
	return append(buf, formatTags(c.global, tags)...)
}

// MetricName joins prefix and name, replacing spaces and slashes and collapsing dots.
func MetricName(prefix, name string) string {
	n := strings.NewReplacer(" ", "_", "/", "_").Replace(strings.TrimSpace(name))
	for strings.Contains(n, "..") {
		n = strings.ReplaceAll(n, "..", ".")
	}
	n = strings.Trim(n, ".")
	if n == "" {
		return ""
	}
	if prefix == "" {
		return n
	}
	return prefix + "." + n
}

// tagValue strips characters that would end a DogStatsD tag early.
var tagValue = strings.NewReplacer(",", "_", "|", "_", "#", "_", "\n", "_")

func formatTags(global, local map[string]string) string {
	merged := make(map[string]string, len(global)+len(local))
	for k, v := range cleanTags(global) {
		merged[k] = v
	}
	for k, v := range cleanTags(local) {
		merged[k] = v
	}
	if len(merged) == 0 {
		return ""
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("|#")
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(tagValue.Replace(merged[k]))
	}
	return b.String()
}

func cleanTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if key := strings.TrimSpace(k); key != "" {
			out[key] = strings.TrimSpace(v)
		}
	}
	return out
}

// Fanout forwards every metric to each non-nil sink.
type Fanout []Sink

var _ Sink = Fanout(nil)

// Count implements Sink.
func (f Fanout) Count(name string, value int64, tags map[string]string) {
	for _, s := range f {
		if s != nil {
			s.Count(name, value, tags)
		}
	}
}

// Gauge implements Sink.
func (f Fanout) Gauge(name string, value float64, tags map[string]string) {
	for _, s := range f {
		if s != nil {
			s.Gauge(name, value, tags)
		}
	}
}

// Timing implements Sink.
func (f Fanout) Timing(name string, value time.Duration, tags map[string]string) {
	for _, s := range f {
		if s != nil {
			s.Timing(name, value, tags)
		}
	}
}
