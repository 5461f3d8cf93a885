package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartAllocationConsumer connects to RabbitMQ, declares the durable
// allocation.events queue and starts consuming.  Each message is
// appended to logs/allocation.log in a single-line, human-friendly
// format.  The function runs a reconnect loop with exponential
// backoff and keeps running across broker restarts; processing errors
// are logged and the offending message rejected without requeue so
// the server continues operating.
func StartAllocationConsumer() error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("allocation-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("allocation-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("allocation-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(allocationQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(allocationQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body); err != nil {
			log.Printf("allocation-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
	var ev AllocationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "allocation.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var line string
	switch ev.Kind {
	case KindPurchase:
		remaining := "?"
		if ev.Remaining != nil {
			remaining = fmt.Sprintf("%d", *ev.Remaining)
		}
		line = fmt.Sprintf("[%s] Purchase | user=%d (%s) | item=%d %q | qty=%d | remaining=%s | strategy=%s\n",
			ev.At, ev.UserID, ev.Username, ev.ItemID, ev.ItemName, ev.Quantity, remaining, ev.Strategy)
	case KindSeatReserved, KindSeatReleased:
		line = fmt.Sprintf("[%s] %s | user=%d (%s) | seat=%d %q | strategy=%s\n",
			ev.At, ev.Kind, ev.UserID, ev.Username, ev.SeatID, ev.SeatLabel, ev.Strategy)
	default:
		line = fmt.Sprintf("[%s] %s | %s\n", ev.At, ev.Kind, string(body))
	}

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
