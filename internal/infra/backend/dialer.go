package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poold/internal/domain"
	"poold/internal/infra/telemetry"
)

// Dialer produces and tears down pooled connections for one backend.
type Dialer struct {
	spec   domain.PoolSpec
	logger *zap.Logger
}

func NewDialer(spec domain.PoolSpec, logger *zap.Logger) *Dialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialer{
		spec:   spec,
		logger: logger.Named("backend").With(telemetry.PoolField(spec.Name)),
	}
}

// Dial opens one backend connection. Serves as the pool factory.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.spec.DialTimeout())
	defer cancel()

	var dialer net.Dialer
	raw, err := dialer.DialContext(dialCtx, d.spec.Network, d.spec.Address)
	if err != nil {
		d.logger.Warn("dial failed",
			zap.String("address", d.spec.Address),
			zap.Error(err),
		)
		return nil, fmt.Errorf("dial %s: %w", d.spec.Address, err)
	}

	conn := &Conn{
		ID:       uuid.NewString(),
		Raw:      raw,
		Addr:     d.spec.Address,
		OpenedAt: time.Now(),
	}
	d.logger.Debug("connection opened",
		zap.String("connID", conn.ID),
		zap.String("remote", conn.RemoteAddr()),
	)
	return conn, nil
}

// Close gracefully closes a connection. Serves as the pool dispose
// operation.
func (d *Dialer) Close(_ context.Context, conn *Conn) error {
	if conn == nil || conn.Raw == nil {
		return errors.New("connection is nil")
	}
	err := conn.Raw.Close()
	d.logger.Debug("connection closed",
		zap.String("connID", conn.ID),
		zap.Duration("lifetime", time.Since(conn.OpenedAt)),
		zap.Error(err),
	)
	return err
}

// Destroy force-closes a connection, ignoring errors. Serves as the pool
// destroy operation.
func (d *Dialer) Destroy(conn *Conn) {
	if conn == nil || conn.Raw == nil {
		return
	}
	_ = conn.Raw.Close()
}

// Ping checks connection liveness without consuming payload bytes: a
// read with an immediate deadline distinguishes "would block" (healthy)
// from EOF or a transport error (dead).
func (d *Dialer) Ping(_ context.Context, conn *Conn) error {
	if conn == nil || conn.Raw == nil {
		return errors.New("connection is nil")
	}
	if err := conn.Raw.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	defer func() {
		_ = conn.Raw.SetReadDeadline(time.Time{})
	}()

	buf := make([]byte, 1)
	_, err := conn.Raw.Read(buf)
	if err == nil {
		// Unread payload is unexpected for an idle pooled connection.
		return errors.New("unexpected data on idle connection")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return nil
	}
	return fmt.Errorf("ping: %w", err)
}
