package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/technoelf/stomata/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10

	millisecondsPerSecond = 1000
)

// Client wraps the InfluxDB v2 client for station presence history.
//
// Writes are non-blocking and batched; failures surface through the
// SetOnError callback. All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected bool
	mu        sync.RWMutex

	onError func(err error)
}

// Connect creates the client, pings the server and starts the batched
// write API. It returns ErrDisabled when influxdb.enabled is false.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	c := &Client{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
	}
	go c.handleWriteErrors(writeAPI.Errors())

	return c, nil
}

func (c *Client) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// Close flushes pending points and closes the client. Repeated calls are no-ops.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()
	if !wasConnected {
		return nil
	}

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// IsConnected returns the last known state; it is false after Close.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets a callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until buffered points are written. No-op after Close.
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
