// Package session ties one UDP socket, one unreliable channel, and one
// reliable transport engine together into a single peer-bound handle.
// The server side learns its peer from the first datagram it reads, the
// same way the teacher's listener learns a client's address; the client
// side binds an ephemeral port and sends a seed datagram so the server
// has something to learn from.
package session

import (
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/xid"

	"github.com/rjsaputra/byte-bistro/pkg/channel"
	"github.com/rjsaputra/byte-bistro/pkg/config"
	"github.com/rjsaputra/byte-bistro/pkg/gbn"
	"github.com/rjsaputra/byte-bistro/pkg/metrics"
	"github.com/rjsaputra/byte-bistro/pkg/sr"
	"github.com/rjsaputra/byte-bistro/pkg/transport"
)

// Engine selects which reliable transport algorithm a session runs.
type Engine string

const (
	EngineGBN Engine = "gbn"
	EngineSR  Engine = "sr"
)

// acceptTimeout bounds how long Listen waits for a client's seed
// datagram before giving up.
const acceptTimeout = 30 * time.Second

// Session owns one UDP socket (via its channel) and one reliable engine
// bound to a single peer.
type Session struct {
	ID xid.ID
	transport.Transport
	channel *channel.Channel
	log     *log.Logger
}

// Listen binds addr and blocks until the first datagram arrives, using
// its source address as the session's peer, then builds the requested
// engine bound to that peer.
func Listen(addr string, engine Engine, tcfg config.Transport, icfg channel.Config, collector *metrics.Collector, logger *log.Logger) (*Session, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("session: resolve listen addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("session: bind: %w", err)
	}

	id := xid.New()
	slog := withFields(logger, id, "server")

	if err := conn.SetReadDeadline(time.Now().Add(acceptTimeout)); err != nil {
		conn.Close()
		return nil, err
	}
	buf := make([]byte, 2048)
	n, peer, err := conn.ReadFromUDP(buf)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: waiting for seed datagram: %w", err)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, err
	}
	if slog != nil {
		slog.Info("peer learned", "addr", peer.String(), "seed_bytes", n)
	}

	return build(id, conn, peer, engine, tcfg, icfg, 1, collector, slog)
}

// Dial binds an ephemeral local port, sends a one-byte seed datagram to
// addr, and builds the requested engine bound to that peer.
func Dial(addr string, engine Engine, tcfg config.Transport, icfg channel.Config, collector *metrics.Collector, logger *log.Logger) (*Session, error) {
	peer, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("session: resolve peer addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("session: bind ephemeral port: %w", err)
	}

	id := xid.New()
	slog := withFields(logger, id, "client")

	if _, err := conn.WriteToUDP([]byte{0}, peer); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: seed datagram: %w", err)
	}
	if slog != nil {
		slog.Info("seed datagram sent", "addr", peer.String())
	}

	return build(id, conn, peer, engine, tcfg, icfg, 1, collector, slog)
}

func withFields(logger *log.Logger, id xid.ID, role string) *log.Logger {
	if logger == nil {
		return nil
	}
	return logger.With("session", id.String(), "role", role)
}

func build(id xid.ID, conn *net.UDPConn, peer *net.UDPAddr, engine Engine, tcfg config.Transport, icfg channel.Config, initSeq uint32, collector *metrics.Collector, logger *log.Logger) (*Session, error) {
	var stats *metrics.Stats
	if collector != nil {
		stats = collector.Track(id.String())
	}

	ch := channel.New(conn, peer, icfg, logger, stats)

	var tr transport.Transport
	switch engine {
	case EngineGBN:
		tr = gbn.New(ch, tcfg.Window, tcfg.MSS, tcfg.RTO, initSeq, logger, stats)
	case EngineSR:
		tr = sr.New(ch, tcfg.Window, tcfg.MSS, tcfg.RTO, initSeq, logger, stats)
	default:
		ch.Close()
		return nil, fmt.Errorf("session: unknown engine %q", engine)
	}

	return &Session{ID: id, Transport: tr, channel: ch, log: logger}, nil
}

// Peer returns the session's current notion of the remote address.
func (s *Session) Peer() *net.UDPAddr {
	return s.channel.Peer()
}
