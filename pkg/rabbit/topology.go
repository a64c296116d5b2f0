package rabbit

import (
	"context"
	"fmt"
)

type Exchange struct {
	Name string
	Kind string
}

// Binding binds Queue to Exchange with Key.
type Binding struct {
	Queue    string
	Exchange string
	Key      string
}

type Topology struct {
	Exchanges []Exchange
	Queues    []string
	Bindings  []Binding
}

// Declare creates durable exchanges, queues and bindings. Safe to call repeatedly.
func (r *RabbitMQ) Declare(ctx context.Context, t Topology) error {
	ch, err := r.Channel(ctx)
	if err != nil {
		return err
	}

	for _, ex := range t.Exchanges {
		kind := ex.Kind
		if kind == "" {
			kind = "topic"
		}
		if err := ch.ExchangeDeclare(ex.Name, kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.Name, err)
		}
	}
	for _, q := range t.Queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	for _, b := range t.Bindings {
		if err := ch.QueueBind(b.Queue, b.Key, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s/%s: %w", b.Queue, b.Exchange, b.Key, err)
		}
	}
	return nil
}
