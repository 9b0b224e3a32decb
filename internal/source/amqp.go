package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPConfig locates the update queue on a broker.
type AMQPConfig struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string
	Prefetch   int
}

// AMQPStream is the infinite update stream backed by a RabbitMQ queue.
//
// Deliveries are consumed with manual acknowledgement: an element is only
// acked when the listener settles it as processed. Unsettled deliveries are
// redelivered by the broker, which is what makes the stream at-least-once.
type AMQPStream struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
	logger     *slog.Logger
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", fmt.Errorf("invalid AMQP scheme: %q", parsed.Scheme)
	}
	return clean, nil
}

// DialAMQP connects to the broker, declares a durable topic exchange and
// queue, binds them and starts consuming.
func DialAMQP(cfg AMQPConfig, logger *slog.Logger) (*AMQPStream, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cleanURL, err := sanitizeURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	s := &AMQPStream{conn: conn, ch: ch, logger: logger}
	if err := s.setup(cfg); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *AMQPStream) setup(cfg AMQPConfig) error {
	if err := s.ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	q, err := s.ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	if err := s.ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	if cfg.Prefetch > 0 {
		if err := s.ch.Qos(cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set prefetch: %w", err)
		}
	}
	msgs, err := s.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}
	s.deliveries = msgs
	return nil
}

// Next implements Stream. A delivery whose body cannot be decoded is
// rejected without requeue and skipped.
func (s *AMQPStream) Next(ctx context.Context) (Element, error) {
	for {
		select {
		case <-ctx.Done():
			return Element{}, ctx.Err()
		case d, ok := <-s.deliveries:
			if !ok {
				return Element{}, io.EOF
			}
			elem, err := decodeDelivery(d)
			if err != nil {
				s.logger.Warn("dropping undecodable delivery",
					"routing_key", d.RoutingKey,
					"delivery_tag", d.DeliveryTag,
					"error", err,
				)
				if rerr := d.Reject(false); rerr != nil {
					s.logger.Error("reject failed", "error", rerr)
				}
				continue
			}
			return elem, nil
		}
	}
}

func decodeDelivery(d amqp.Delivery) (Element, error) {
	var m Message
	if err := json.Unmarshal(d.Body, &m); err != nil {
		return Element{}, fmt.Errorf("decode message: %w", err)
	}
	elem := m.Element()
	elem.settle = func(processed bool) error {
		if processed {
			return d.Ack(false)
		}
		return d.Nack(false, true)
	}
	return elem, nil
}

// Close shuts the channel and connection down.
func (s *AMQPStream) Close() {
	if s.ch != nil {
		s.ch.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
