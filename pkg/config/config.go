// Package config centralizes the tunables shared by the GBN and SR
// engines and the channel emulator, and applies the defaults/clamps both
// engines rely on so they don't each reimplement them.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Tunable bounds. WndMax is a compile-time cap: slot tables are sized
// wnd, so an unbounded wnd would make sender/receiver slot tables
// unbounded too.
const (
	DefaultWindow = 32
	WndMax        = 256
	DefaultMSS    = 512
	DefaultRTO    = 120 * time.Millisecond
)

// Transport holds the ARQ-level tunables for one engine instance.
type Transport struct {
	Window int           `toml:"window"`
	MSS    int           `toml:"mss"`
	RTO    time.Duration `toml:"rto"`
}

// Impairment holds the channel emulator's loss/dup/reorder/delay/rate
// parameters. Percentages are 0..100; a zero Seed resolves to a fixed
// nonzero constant in pkg/channel so "unset" still produces a
// reproducible stream rather than a wall-clock one.
type Impairment struct {
	LossPct    float64       `toml:"loss_pct"`
	DupPct     float64       `toml:"dup_pct"`
	ReorderPct float64       `toml:"reorder_pct"`
	DelayMean  time.Duration `toml:"delay_mean"`
	Jitter     time.Duration `toml:"jitter"`
	RateMbps   float64       `toml:"rate_mbps"`
	Seed       uint64        `toml:"seed"`
}

// Config is the top-level file shape loaded by cmd/bb-server and
// cmd/bb-client.
type Config struct {
	ListenAddr string     `toml:"listen_addr"`
	PeerAddr   string     `toml:"peer_addr"`
	Transport  Transport  `toml:"transport"`
	Impairment Impairment `toml:"impairment"`
}

// Load reads and defaults a Config from a TOML file at path.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	cfg.Transport = cfg.Transport.WithDefaults()
	return cfg, nil
}

// WithDefaults returns t with zero fields replaced by spec defaults and
// Window clamped to WndMax. A configuration error (zero window, zero
// MSS) is silently defaulted, never returned as an error — per the
// transport's error taxonomy, configuration mistakes don't fail startup.
func (t Transport) WithDefaults() Transport {
	out := t
	if out.Window <= 0 {
		out.Window = DefaultWindow
	}
	if out.Window > WndMax {
		out.Window = WndMax
	}
	if out.MSS <= 0 {
		out.MSS = DefaultMSS
	}
	if out.RTO <= 0 {
		out.RTO = DefaultRTO
	}
	return out
}
