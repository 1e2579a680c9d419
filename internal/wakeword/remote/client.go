package remote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wit-terminal/voicecore/internal/resilience"
	"github.com/wit-terminal/voicecore/internal/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

var ErrServerDown = errors.New("wake-word backend unavailable")

// Config mirrors grpcclient.ClientConfig for the wake-word backend.
type Config struct {
	KeepaliveTime       time.Duration
	KeepaliveTimeout    time.Duration
	HealthCheckInterval time.Duration
	CallTimeout         time.Duration
	BreakerConfig       resilience.Config
}

func DefaultConfig() Config {
	return Config{
		KeepaliveTime:       DefaultKeepaliveTime,
		KeepaliveTimeout:    DefaultKeepaliveTimeout,
		HealthCheckInterval: DefaultHealthCheckInterval,
		CallTimeout:         DefaultCallTimeout,
		BreakerConfig:       resilience.DefaultConfig(),
	}
}

// Client talks to a remote wake-word backend reached over gRPC; Scorer
// (adapter.go) wraps it to implement voice.Scorer. The core never parses model blobs; Score just forwards the
// already-extracted feature vector and decodes a {name, confidence} reply.
type Client struct {
	conn         *grpc.ClientConn
	health       grpc_health_v1.HealthClient
	cb           *resilience.Breaker
	cfg          Config
	healthCancel context.CancelFunc
}

// New dials addr and starts background health monitoring, grounded on
// grpcclient.NewWithConfig's connection setup.
func New(addr string, cfg Config) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithStreamInterceptor(trace.StreamClientInterceptor()),
	)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:   conn,
		health: grpc_health_v1.NewHealthClient(conn),
		cb:     resilience.New(cfg.BreakerConfig),
		cfg:    cfg,
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.healthCancel = cancel
	go c.monitorHealth(ctx)

	return c, nil
}

func (c *Client) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.checkHealth(ctx); err != nil {
				slog.Debug("wake-word backend health check failed", "error", err)
			}
		}
	}
}

func (c *Client) checkHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := c.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		c.cb.Failure()
		return err
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		c.cb.Failure()
		return ErrServerDown
	}
	c.cb.Success()
	return nil
}

// IsConnected reports whether the underlying connection is ready.
func (c *Client) IsConnected() bool {
	return c.conn.GetState() == connectivity.Ready
}

// Score sends one feature vector to the backend. features is packed into a structpb.Struct
// under "features" and sent via a generic unary Invoke against ScoreMethod,
// since no local stub exists for this externally-owned service.
func (c *Client) Score(ctx context.Context, features []float32) (name string, confidence float64, detected bool, err error) {
	if err := c.cb.Allow(); err != nil {
		return "", 0, false, err
	}

	values := make([]interface{}, len(features))
	for i, f := range features {
		values[i] = float64(f)
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return "", 0, false, err
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"features": structpb.NewListValue(list),
	}}
	reply := &structpb.Struct{}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	if err := c.conn.Invoke(ctx, ScoreMethod, req, reply); err != nil {
		c.cb.Failure()
		return "", 0, false, err
	}
	c.cb.Success()

	detectedVal, ok := reply.Fields["detected"]
	if !ok || !detectedVal.GetBoolValue() {
		return "", 0, false, nil
	}
	name = reply.Fields["name"].GetStringValue()
	confidence = reply.Fields["confidence"].GetNumberValue()
	return name, confidence, true, nil
}

// Close tears down the connection and stops health monitoring.
func (c *Client) Close() error {
	if c.healthCancel != nil {
		c.healthCancel()
	}
	return c.conn.Close()
}
