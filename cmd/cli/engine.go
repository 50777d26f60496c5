package cli

import (
	"context"
	"fmt"

	"github.com/anstrom/netrecon/internal/config"
	"github.com/anstrom/netrecon/internal/coordinator"
	"github.com/anstrom/netrecon/internal/db"
	"github.com/anstrom/netrecon/internal/demo"
	"github.com/anstrom/netrecon/internal/discovery"
	"github.com/anstrom/netrecon/internal/enrich"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/netmap"
	"github.com/anstrom/netrecon/internal/scanning"
	"github.com/anstrom/netrecon/internal/vendor"
)

// engine holds the scan collaborators built from configuration.
type engine struct {
	cfg        *config.Config
	logger     *logging.Logger
	ports      []uint16
	discoverer *discovery.Discoverer
	scanner    *scanning.PortScanner
	enricher   *enrich.Chain
}

// newEngine wires discovery, scanning and enrichment against either the
// real network or the simulated one.
func newEngine(c *config.Config, logger *logging.Logger) (*engine, error) {
	ports, err := c.ScanPorts()
	if err != nil {
		return nil, err
	}

	e := &engine{cfg: c, logger: logger, ports: ports}
	logger.Debug("Vendor table loaded", "oui_prefixes", vendor.Count())

	if c.Demo.Enabled {
		network := demo.New(c.Demo.Latency)
		e.discoverer = discovery.New(discovery.Options{
			ARP:       network,
			Routes:    network,
			Sweeper:   network,
			LocalAddr: network.LocalAddr,
			Logger:    logger,
		})
		e.scanner = scanning.NewPortScanner(c.ScannerConfig(),
			scanning.WithDialer(network), scanning.WithLogger(logger))
		e.enricher = enrich.NewChain(logger, network)
		logger.Info("Using simulated network", "hosts", len(demo.Hosts()))
		return e, nil
	}

	sweeper, err := discovery.NewSweeper(c.Discovery.SweepMethod, c.SweepOptions(logger))
	if err != nil {
		return nil, err
	}
	e.discoverer = discovery.New(discovery.Options{Sweeper: sweeper, Logger: logger})
	e.scanner = scanning.NewPortScanner(c.ScannerConfig(), scanning.WithLogger(logger))
	e.enricher = enrich.NewChain(logger, resolvers(c.Enrichment)...)
	return e, nil
}

// resolvers builds the enabled hostname resolvers in lookup order.
func resolvers(c config.EnrichmentConfig) []enrich.Resolver {
	var out []enrich.Resolver
	if c.MDNS {
		out = append(out, &enrich.MDNSResolver{Timeout: c.MDNSTimeout})
	}
	if c.ReverseDNS {
		out = append(out, &enrich.ReverseDNSResolver{Server: c.DNSServer, Timeout: c.Timeout})
	}
	if c.SNMP {
		out = append(out, &enrich.SNMPResolver{Community: c.SNMPCommunity, Port: c.SNMPPort, Timeout: c.Timeout})
	}
	return out
}

// coordinator builds a scan coordinator. store may be nil.
func (e *engine) coordinator(store netmap.Store) *coordinator.Coordinator {
	opts := []coordinator.Option{coordinator.WithLogger(e.logger)}
	if e.enricher.Len() > 0 {
		opts = append(opts, coordinator.WithEnricher(e.enricher))
	}
	if store != nil {
		opts = append(opts, coordinator.WithStore(store))
	}
	return coordinator.New(coordinator.Config{Ports: e.ports, Network: e.cfg.Scanning.Network},
		e.discoverer, e.scanner, opts...)
}

// openStore connects to the configured database and applies migrations.
func openStore(ctx context.Context, c *config.Config) (*db.DB, *db.DeviceRepository, error) {
	database, err := db.ConnectAndMigrate(ctx, &c.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open device store: %w", err)
	}
	return database, db.NewDeviceRepository(database), nil
}
