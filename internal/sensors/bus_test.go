package sensors

import (
	"testing"
)

func TestBusPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus[MotionSample]()

	id1, ch1 := bus.Subscribe()
	id2, ch2 := bus.Subscribe()
	defer bus.Unsubscribe(id1)
	defer bus.Unsubscribe(id2)

	sample := MotionSample{X: 1, Y: 2, Z: 3}
	bus.Publish(sample)

	for _, ch := range []<-chan MotionSample{ch1, ch2} {
		select {
		case got := <-ch:
			if got != sample {
				t.Errorf("received %+v, want %+v", got, sample)
			}
		default:
			t.Fatal("subscriber did not receive published sample")
		}
	}
}

func TestBusPreservesOrderPerSubscriber(t *testing.T) {
	bus := NewBus[MotionSample]()
	id, ch := bus.Subscribe()
	defer bus.Unsubscribe(id)

	for i := 0; i < 5; i++ {
		bus.Publish(MotionSample{X: float64(i)})
	}

	for i := 0; i < 5; i++ {
		got := <-ch
		if got.X != float64(i) {
			t.Fatalf("sample %d has X = %v, want %d", i, got.X, i)
		}
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus[PositionSample]()
	id, ch := bus.Subscribe()

	bus.Unsubscribe(id)
	bus.Publish(PositionSample{Latitude: 1, Longitude: 2})

	select {
	case got := <-ch:
		t.Errorf("received %+v after unsubscribe", got)
	default:
	}

	if n := bus.Subscribers(); n != 0 {
		t.Errorf("Subscribers() = %d, want 0", n)
	}
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus[MotionSample]()
	id, ch := bus.Subscribe()
	defer bus.Unsubscribe(id)

	// Publish well past the subscriber buffer without draining. The extra
	// samples are dropped rather than blocking the producer.
	for i := 0; i < subscriberBuffer*3; i++ {
		bus.Publish(MotionSample{X: float64(i)})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received != subscriberBuffer {
		t.Errorf("received %d buffered samples, want %d", received, subscriberBuffer)
	}
}
