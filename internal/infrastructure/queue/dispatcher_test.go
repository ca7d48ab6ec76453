package queue

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
)

// recordingShipmentService captures location updates; every other method of
// the interface is unused by the dispatcher.
type recordingShipmentService struct {
	ports.ShipmentService
	updates chan domain.LocationUpdate
}

func (s *recordingShipmentService) HandleLocationUpdate(_ context.Context, update domain.LocationUpdate) error {
	s.updates <- update
	return nil
}

func driverPing(driverID string, seq int) domain.LocationUpdate {
	return domain.LocationUpdate{
		TenantID:  "t1",
		DriverID:  driverID,
		Location:  domain.Coordinates{Lat: float64(seq), Lng: 0},
		Timestamp: time.Now().UTC(),
	}
}

func TestDispatcher_PreservesPerDriverOrder(t *testing.T) {
	svc := &recordingShipmentService{updates: make(chan domain.LocationUpdate, 16)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDispatcher(4, svc, zerolog.Nop())
	d.Start(ctx)

	for i := 0; i < 5; i++ {
		d.Enqueue(driverPing("d1", i))
	}

	for i := 0; i < 5; i++ {
		select {
		case got := <-svc.updates:
			if got.Location.Lat != float64(i) {
				t.Fatalf("ping %d arrived out of order: got seq %v", i, got.Location.Lat)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("ping %d never reached the worker", i)
		}
	}
}

func TestEnqueue_DropsInsteadOfBlockingWhenFull(t *testing.T) {
	// No workers started: the single shard fills up and stays full.
	d := NewDispatcher(1, &recordingShipmentService{}, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < channelBuffer+16; i++ {
			d.Enqueue(driverPing("d1", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked on a full worker queue")
	}
	if got := len(d.workers[0]); got != channelBuffer {
		t.Fatalf("expected a full buffer of %d, got %d", channelBuffer, got)
	}
}
