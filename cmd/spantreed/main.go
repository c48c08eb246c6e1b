// Command spantreed dials a single InspIRCd-dialect uplink, runs the
// spantree protocol core against it, and exposes the optional
// read-only admin and Prometheus endpoints described in the config.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/presbrey/spantree"
	"github.com/presbrey/spantree/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file or URL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("spantreed: failed to load configuration: %v", err)
	}

	net := spantree.NewNetwork(cfg.Link.SID, cfg.Link.Hostname, cfg.Link.SendPass, cfg.Link.RecvPass, cfg.Link.ServerDesc)

	sidGen, err := spantree.NewSIDGenerator(cfg.Link.SID)
	if err != nil {
		log.Fatalf("spantreed: bad local SID %q: %v", cfg.Link.SID, err)
	}

	hooks := spantree.NewHookBus()
	core := spantree.NewCore(net, hooks, nil, sidGen)

	link := spantree.NewLink(core, cfg.Uplink.Address, cfg.Uplink.PingInterval, cfg.Uplink.PongTimeout)
	tlsConfig, err := cfg.UplinkTLSConfig()
	if err != nil {
		log.Fatalf("spantreed: uplink TLS configuration: %v", err)
	}
	if tlsConfig != nil {
		link.SetTLSConfig(tlsConfig)
	}
	core.SetSender(link)

	if cfg.Admin.Enabled {
		admin := spantree.NewAdminServer(net, core)
		go func() {
			if err := admin.ListenAndServe(cfg.AdminAddr()); err != nil {
				log.Printf("spantreed: admin server exited: %v", err)
			}
		}()
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := spantree.ServeMetrics(cfg.MetricsAddr()); err != nil {
				log.Printf("spantreed: metrics server exited: %v", err)
			}
		}()
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				spantree.PublishStoreGauges(net)
				spantree.PublishLinkState(core)
			}
		}()
	}

	go func() {
		if err := link.Run(); err != nil {
			log.Printf("spantreed: link to %s closed: %v", cfg.Uplink.Address, err)
		}
	}()

	log.Printf("spantreed: linking %s (sid %s) to uplink %s", cfg.Link.Hostname, cfg.Link.SID, cfg.Uplink.Address)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("spantreed: shutting down")
	if err := link.Close(); err != nil {
		log.Printf("spantreed: error closing link: %v", err)
	}
}
