package rabbitmq

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/codegen-ide/internal/events"
	"go.uber.org/zap"
)

// Subscriber binds a private, auto-deleted queue to the event exchange.
type Subscriber struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	log   *zap.Logger
}

func NewSubscriber(url, exchange string, log *zap.Logger) (*Subscriber, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	fail := func(err error) (*Subscriber, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := declareExchange(ch, exchange); err != nil {
		return fail(err)
	}
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false,
		nil,
	)
	if err != nil {
		return fail(err)
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return fail(err)
	}
	return &Subscriber{conn: conn, ch: ch, queue: q.Name, log: log}, nil
}

func (s *Subscriber) Close() error {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Run hands every decoded event to handle until ctx is done or the broker
// closes the delivery channel.
func (s *Subscriber) Run(ctx context.Context, handle func(events.Event)) error {
	msgs, err := s.ch.Consume(s.queue, "", true, true, false, false, nil)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("rabbitmq: delivery channel closed")
			}
			e, err := decode(d)
			if err != nil {
				s.log.Warn("bad event message", zap.String("type", d.Type), zap.Error(err))
				continue
			}
			handle(e)
		}
	}
}

func decode(d amqp.Delivery) (events.Event, error) {
	return events.Unmarshal(d.Body)
}
