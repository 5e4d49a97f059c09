package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer reads floor.events and appends one line per event to an audit
// log file.
type Consumer struct {
	URL     string
	LogPath string
	Log     *zap.Logger
}

// NewConsumer returns a consumer for the configured broker writing to
// logs/floor.log.
func NewConsumer(log *zap.Logger) *Consumer {
	return &Consumer{URL: BrokerURL(), LogPath: filepath.Join("logs", "floor.log"), Log: log}
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff.  Malformed messages are logged
// and rejected without requeue so the loop never spins on them.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("floor-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("floor-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("floor-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(FloorEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(FloorEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				c.Log.Error("floor-consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(body []byte) error {
	var ev FloorEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders an event as one human-readable audit log line.
func FormatLine(ev FloorEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", ev.OccurredAt, ev.Type)
	if ev.IdentityRef != "" {
		fmt.Fprintf(&b, " | %s=%s", ev.IdentityKind, ev.IdentityRef)
	}
	if ev.Status != "" {
		fmt.Fprintf(&b, " | status=%s", ev.Status)
	}
	if ev.AreaCm2 > 0 {
		fmt.Fprintf(&b, " | area_cm2=%d", ev.AreaCm2)
	}
	if ev.DonorName != "" {
		fmt.Fprintf(&b, " | donor=%q", ev.DonorName)
	}
	fmt.Fprintf(&b, " | cells=[%s] | event_id=%s\n", strings.Join(ev.CellIDs, ","), ev.EventID)
	return b.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
