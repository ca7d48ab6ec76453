package queue

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Dispatcher routes driver position pings to a fixed set of workers using
// consistent hashing on the driver id, guaranteeing per-driver ordering of
// geofence evaluations.
type Dispatcher struct {
	workers []chan domain.LocationUpdate
	service ports.ShipmentService
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, service ports.ShipmentService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.LocationUpdate, numWorkers),
		service: service,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.LocationUpdate, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends a ping to the worker responsible for its driver. The call
// never blocks: when the worker's buffer is full the ping is dropped with a
// warning, since a fresher position will follow shortly anyway.
func (d *Dispatcher) Enqueue(update domain.LocationUpdate) {
	select {
	case d.workers[d.shardIndex(update.TenantID+":"+update.DriverID)] <- update:
	default:
		d.log.Warn().
			Str("tenant_id", update.TenantID).
			Str("driver_id", update.DriverID).
			Msg("location queue full, ping dropped")
	}
}

// shardIndex maps a shard key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.LocationUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			if err := d.service.HandleLocationUpdate(ctx, update); err != nil {
				d.log.Error().Err(err).
					Int("worker", id).
					Str("driver_id", update.DriverID).
					Msg("location update failed")
			}
		}
	}
}
