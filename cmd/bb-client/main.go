// Command bb-client dials a bb-server, places one ORDER, and waits for
// its REPLY. It exercises the same session/engine/channel stack as
// bb-server from the dialing side.
package main

import (
	"flag"
	"time"

	"github.com/rjsaputra/byte-bistro/pkg/channel"
	"github.com/rjsaputra/byte-bistro/pkg/config"
	"github.com/rjsaputra/byte-bistro/pkg/logging"
	"github.com/rjsaputra/byte-bistro/pkg/orderproto"
	"github.com/rjsaputra/byte-bistro/pkg/session"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (optional)")
	peerAddr := flag.String("peer", "127.0.0.1:9000", "server address to dial")
	engineFlag := flag.String("engine", "gbn", "reliable engine: gbn or sr")
	item := flag.String("item", "espresso", "item to order")
	qty := flag.Int("qty", 1, "quantity to order")
	replyTimeout := flag.Duration("reply-timeout", 5*time.Second, "how long to wait for a reply")
	logLevel := flag.String("log-level", "info", "debug, info, warn, or error")
	flag.Parse()

	log := logging.New("CLIENT", logging.ParseLevel(*logLevel))
	logging.Section(log, "bb-client starting")

	cfg := config.Config{PeerAddr: *peerAddr, Transport: config.Transport{}.WithDefaults()}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal("loading config", "path", *configPath, "err", err)
		}
		cfg = loaded
		if cfg.PeerAddr == "" {
			cfg.PeerAddr = *peerAddr
		}
	}

	engine := session.EngineGBN
	if *engineFlag == string(session.EngineSR) {
		engine = session.EngineSR
	}

	icfg := channel.Config{
		LossPct:    cfg.Impairment.LossPct,
		DupPct:     cfg.Impairment.DupPct,
		ReorderPct: cfg.Impairment.ReorderPct,
		DelayMean:  cfg.Impairment.DelayMean,
		Jitter:     cfg.Impairment.Jitter,
		RateMbps:   cfg.Impairment.RateMbps,
		Seed:       cfg.Impairment.Seed,
	}

	log.Info("dialing", "addr", cfg.PeerAddr, "engine", engine)
	sess, err := session.Dial(cfg.PeerAddr, engine, cfg.Transport, icfg, nil, log)
	if err != nil {
		log.Fatal("dial failed", "err", err)
	}
	defer sess.Close()

	order := orderproto.Order{ID: uint64(time.Now().UnixNano()), Item: *item, Qty: *qty}
	if err := sess.Send(orderproto.EncodeOrder(order)); err != nil {
		log.Fatal("order send failed", "err", err)
	}
	log.Info("order sent", "id", order.ID, "item", order.Item, "qty", order.Qty)

	buf := make([]byte, 2048)
	deadline := time.Now().Add(*replyTimeout)
	for time.Now().Before(deadline) {
		n, err := sess.Recv(buf, 200*time.Millisecond)
		if err != nil {
			log.Fatal("recv failed", "err", err)
		}
		if n == 0 {
			continue
		}
		reply, err := orderproto.DecodeReply(buf[:n])
		if err != nil {
			log.Error("malformed reply", "err", err)
			continue
		}
		log.Info("reply received", "order_id", reply.OrderID, "status", reply.Status)
		return
	}
	log.Error("no reply within timeout", "timeout", *replyTimeout)
}
