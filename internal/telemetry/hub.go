package telemetry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/golang/glog"

	"github.com/relabs-tech/tilt_matrix/internal/mpu6050"
	"github.com/relabs-tech/tilt_matrix/internal/sched"
)

// subscriberBuffer is how many reports a slow websocket client may lag
// behind before reports are dropped for it.
const subscriberBuffer = 16

// Hub keeps the latest report of each kind and fans reports out to the
// publisher and to live subscribers. Only the telemetry task writes to it.
type Hub struct {
	pub    Publisher
	topics Topics

	mu       sync.RWMutex
	attitude *mpu6050.Attitude
	frame    *Frame
	subs     map[chan Report]struct{}
}

// NewHub creates a hub. pub may be nil to disable MQTT.
func NewHub(pub Publisher, topics Topics) *Hub {
	return &Hub{pub: pub, topics: topics, subs: map[chan Report]struct{}{}}
}

// Run consumes the diagnostics queue until ctx is done.
func (h *Hub) Run(ctx context.Context, in *sched.Queue[Report]) error {
	glog.Info("telemetry: started")
	for {
		r, err := in.Recv(ctx)
		if err != nil {
			return err
		}
		h.Handle(r)
	}
}

// Handle records r, publishes it and forwards it to subscribers.
// Publish failures are logged and do not stop the hub.
func (h *Hub) Handle(r Report) {
	var (
		topic string
		v     any
	)
	h.mu.Lock()
	switch {
	case r.Attitude != nil:
		a := *r.Attitude
		h.attitude = &a
		topic, v = h.topics.Attitude, a
	case r.Frame != nil:
		f := *r.Frame
		h.frame = &f
		topic, v = h.topics.Frame, f
	default:
		h.mu.Unlock()
		return
	}
	for ch := range h.subs {
		select {
		case ch <- r:
		default:
		}
	}
	h.mu.Unlock()

	if h.pub == nil || topic == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		glog.Errorf("telemetry: json marshal error (%s): %v", topic, err)
		return
	}
	if err := h.pub.Publish(topic, payload); err != nil {
		glog.Warningf("telemetry: %v", err)
	}
}

// Attitude returns the latest attitude report, if any.
func (h *Hub) Attitude() (mpu6050.Attitude, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.attitude == nil {
		return mpu6050.Attitude{}, false
	}
	return *h.attitude, true
}

// Frame returns the latest frame, if any.
func (h *Hub) Frame() (Frame, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.frame == nil {
		return Frame{}, false
	}
	return *h.frame, true
}

// Subscribe registers a live listener. The returned func unregisters it
// and closes the channel.
func (h *Hub) Subscribe() (<-chan Report, func()) {
	ch := make(chan Report, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
}
