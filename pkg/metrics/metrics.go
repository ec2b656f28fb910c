// Package metrics exposes transport and channel state as a Prometheus
// collector. It mirrors the shape of a kernel TCP_INFO collector — a
// mutex-guarded map of tracked sessions plus a list of {description,
// supplier} pairs — adapted from per-socket kernel counters to
// per-session ARQ counters. Nothing here affects protocol behavior.
// Metrics are optional: callers hold a nil *Collector or *Stats to turn
// them off and check for nil before each call, since the methods here do
// not accept a nil receiver.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is the set of counters one session (one Channel + one engine)
// updates as it runs. All fields are accessed via atomic operations so
// the single-owner engine/channel goroutine and a concurrent Collect
// scrape never race.
type Stats struct {
	BytesTx          uint64
	BytesRx          uint64
	FramesDropped    uint64 // channel: loss-injected
	FramesDuplicated uint64 // channel: dup-injected
	FramesReordered  uint64 // channel: reorder-injected
	Throttled        uint64 // channel: token-bucket deferrals
	Retransmissions  uint64 // engine: timer-driven resends
	WindowOutstanding uint64 // engine: snd_nxt - snd_una, signed-safe gauge
	CumulativeAck    uint64 // engine: current snd_una
}

func (s *Stats) AddBytesTx(n int)      { atomic.AddUint64(&s.BytesTx, uint64(n)) }
func (s *Stats) AddBytesRx(n int)      { atomic.AddUint64(&s.BytesRx, uint64(n)) }
func (s *Stats) IncDropped()           { atomic.AddUint64(&s.FramesDropped, 1) }
func (s *Stats) IncDuplicated()        { atomic.AddUint64(&s.FramesDuplicated, 1) }
func (s *Stats) IncReordered()         { atomic.AddUint64(&s.FramesReordered, 1) }
func (s *Stats) IncThrottled()         { atomic.AddUint64(&s.Throttled, 1) }
func (s *Stats) IncRetransmissions()   { atomic.AddUint64(&s.Retransmissions, 1) }
func (s *Stats) SetWindowOutstanding(n int) {
	atomic.StoreUint64(&s.WindowOutstanding, uint64(n))
}
func (s *Stats) SetCumulativeAck(v uint32) {
	atomic.StoreUint64(&s.CumulativeAck, uint64(v))
}

func (s *Stats) snapshot() Stats {
	return Stats{
		BytesTx:           atomic.LoadUint64(&s.BytesTx),
		BytesRx:           atomic.LoadUint64(&s.BytesRx),
		FramesDropped:     atomic.LoadUint64(&s.FramesDropped),
		FramesDuplicated:  atomic.LoadUint64(&s.FramesDuplicated),
		FramesReordered:   atomic.LoadUint64(&s.FramesReordered),
		Throttled:         atomic.LoadUint64(&s.Throttled),
		Retransmissions:   atomic.LoadUint64(&s.Retransmissions),
		WindowOutstanding: atomic.LoadUint64(&s.WindowOutstanding),
		CumulativeAck:     atomic.LoadUint64(&s.CumulativeAck),
	}
}

type info struct {
	desc     *prometheus.Desc
	valType  prometheus.ValueType
	supplier func(Stats) float64
}

// Collector implements prometheus.Collector over every session
// registered with it via Track.
type Collector struct {
	mu       sync.Mutex
	sessions map[string]*Stats
	infos    []info
}

// NewCollector builds a Collector whose metric names share prefix (e.g.
// "bytebistro").
func NewCollector(prefix string) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prefix+"_"+name, help, []string{"session"}, nil)
	}
	return &Collector{
		sessions: make(map[string]*Stats),
		infos: []info{
			{desc("bytes_tx_total", "Bytes transmitted on the wire."), prometheus.CounterValue,
				func(s Stats) float64 { return float64(s.BytesTx) }},
			{desc("bytes_rx_total", "Bytes received from the wire."), prometheus.CounterValue,
				func(s Stats) float64 { return float64(s.BytesRx) }},
			{desc("frames_dropped_total", "Frames dropped by loss injection."), prometheus.CounterValue,
				func(s Stats) float64 { return float64(s.FramesDropped) }},
			{desc("frames_duplicated_total", "Frames duplicated by dup injection."), prometheus.CounterValue,
				func(s Stats) float64 { return float64(s.FramesDuplicated) }},
			{desc("frames_reordered_total", "Frames swapped by reorder injection."), prometheus.CounterValue,
				func(s Stats) float64 { return float64(s.FramesReordered) }},
			{desc("throttled_total", "Drain cycles deferred by the token bucket."), prometheus.CounterValue,
				func(s Stats) float64 { return float64(s.Throttled) }},
			{desc("retransmissions_total", "Timer-driven retransmissions."), prometheus.CounterValue,
				func(s Stats) float64 { return float64(s.Retransmissions) }},
			{desc("window_outstanding", "snd_nxt - snd_una at last observation."), prometheus.GaugeValue,
				func(s Stats) float64 { return float64(s.WindowOutstanding) }},
			{desc("cumulative_ack", "Current snd_una (oldest unacknowledged sequence)."), prometheus.GaugeValue,
				func(s Stats) float64 { return float64(s.CumulativeAck) }},
		},
	}
}

// Track registers a new Stats block under id (typically an xid-derived
// session label) and returns it for the session to update directly.
func (c *Collector) Track(id string) *Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &Stats{}
	c.sessions[id] = s
	return s
}

// Untrack removes id's stats from future scrapes, e.g. on session close.
func (c *Collector) Untrack(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, i := range c.infos {
		ch <- i.desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range c.sessions {
		snap := s.snapshot()
		for _, i := range c.infos {
			ch <- prometheus.MustNewConstMetric(i.desc, i.valType, i.supplier(snap), id)
		}
	}
}
