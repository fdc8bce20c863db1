package worker

import (
	"context"
	"errors"

	"tapcard_server/adapter/out/messaging"

	"github.com/rs/zerolog"
)

var errPoolStopped = errors.New("worker pool is not accepting jobs")

// Submitter accepts decoded messages.
type Submitter interface {
	Submit(msg *Message) bool
}

// Dispatcher is the stream consumer's handler: it decodes each entry and
// hands it to the pool. Entries that fail to decode, or arrive while the pool
// is stopping, stay pending and are retried or dead-lettered by the consumer.
type Dispatcher struct {
	pool Submitter
	log  zerolog.Logger
}

var _ messaging.JobHandler = (*Dispatcher)(nil)

func NewDispatcher(pool Submitter, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{pool: pool, log: log}
}

func (d *Dispatcher) Handle(_ context.Context, stream, id string, data []byte) error {
	msg, err := Decode(stream, id, data)
	if err != nil {
		return err
	}
	if !d.pool.Submit(msg) {
		return errPoolStopped
	}
	return nil
}
