// Command bb-server listens for one peer, decodes ORDER messages off a
// reliable transport, and replies with REPLY messages. It is the
// exercising client for pkg/session, pkg/gbn/pkg/sr, pkg/channel, and
// pkg/metrics all wired together end to end.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rjsaputra/byte-bistro/pkg/channel"
	"github.com/rjsaputra/byte-bistro/pkg/config"
	"github.com/rjsaputra/byte-bistro/pkg/logging"
	"github.com/rjsaputra/byte-bistro/pkg/metrics"
	"github.com/rjsaputra/byte-bistro/pkg/orderproto"
	"github.com/rjsaputra/byte-bistro/pkg/session"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (optional)")
	listenAddr := flag.String("listen", "127.0.0.1:9000", "address to listen on")
	engineFlag := flag.String("engine", "gbn", "reliable engine: gbn or sr")
	metricsAddr := flag.String("metrics-addr", "127.0.0.1:9100", "address to serve /metrics on")
	logLevel := flag.String("log-level", "info", "debug, info, warn, or error")
	flag.Parse()

	log := logging.New("SERVER", logging.ParseLevel(*logLevel))
	logging.Section(log, "bb-server starting")

	cfg := config.Config{ListenAddr: *listenAddr, Transport: config.Transport{}.WithDefaults()}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal("loading config", "path", *configPath, "err", err)
		}
		cfg = loaded
		if cfg.ListenAddr == "" {
			cfg.ListenAddr = *listenAddr
		}
	}

	collector := metrics.NewCollector("bytebistro")
	prometheus.MustRegister(collector)
	go serveMetrics(*metricsAddr, log)

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

	log.Info("waiting for peer", "addr", cfg.ListenAddr, "engine", engine)
	sess, err := session.Listen(cfg.ListenAddr, engine, cfg.Transport, icfg, collector, log)
	if err != nil {
		log.Fatal("listen failed", "err", err)
	}
	defer sess.Close()
	log.Info("peer connected", "peer", sess.Peer().String(), "session", sess.ID.String())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go serveOrders(sess, log, done)

	select {
	case <-stop:
		log.Info("shutting down")
	case <-done:
		log.Info("peer loop exited")
	}
}

func serveOrders(sess *session.Session, log *log.Logger, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, 2048)
	for {
		n, err := sess.Recv(buf, 200*time.Millisecond)
		if err != nil {
			log.Error("recv failed", "err", err)
			return
		}
		if n == 0 {
			continue
		}
		order, err := orderproto.DecodeOrder(buf[:n])
		if err != nil {
			log.Error("malformed order", "err", err)
			continue
		}
		log.Info("order received", "id", order.ID, "item", order.Item, "qty", order.Qty)
		reply := orderproto.EncodeReply(orderproto.Reply{OrderID: order.ID, Status: "OK"})
		if err := sess.Send(reply); err != nil {
			log.Error("reply send failed", "err", err)
			return
		}
	}
}

func serveMetrics(addr string, log *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", "err", err)
	}
}
