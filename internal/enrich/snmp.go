package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/anstrom/netrecon/internal/netmap"
)

// OIDSysName is SNMPv2-MIB::sysName.0.
const OIDSysName = "1.3.6.1.2.1.1.5.0"

// SNMPGetter performs SNMP GET requests against one agent.
type SNMPGetter interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	Close() error
}

// SNMPDialer connects to the agent at target.
type SNMPDialer func(ctx context.Context, target string) (SNMPGetter, error)

// SNMPResolver reads sysName.0 from the gateway.
type SNMPResolver struct {
	Community string
	Port      uint16
	Timeout   time.Duration
	// Dial overrides the SNMP client factory.
	Dial SNMPDialer
}

func (r *SNMPResolver) Name() string { return "snmp" }

func (r *SNMPResolver) ResolveHostnames(ctx context.Context, devices []netmap.Device) (map[string]string, error) {
	out := make(map[string]string)

	target := ""
	for _, d := range devices {
		if d.DeviceType == netmap.DeviceTypeRouter && d.Hostname == "" {
			target = d.IP
			break
		}
	}
	if target == "" {
		return out, nil
	}

	dial := r.Dial
	if dial == nil {
		dial = r.dialGoSNMP
	}
	client, err := dial(ctx, target)
	if err != nil {
		return out, fmt.Errorf("snmp connect %s: %w", target, err)
	}
	defer func() { _ = client.Close() }()

	pkt, err := client.Get([]string{OIDSysName})
	if err != nil {
		return out, fmt.Errorf("snmp get %s: %w", target, err)
	}
	for _, v := range pkt.Variables {
		if name, ok := sysName(v); ok {
			out[target] = name
			break
		}
	}
	return out, nil
}

func sysName(pdu gosnmp.SnmpPDU) (string, bool) {
	if strings.TrimPrefix(pdu.Name, ".") != OIDSysName || pdu.Type != gosnmp.OctetString {
		return "", false
	}
	var name string
	switch v := pdu.Value.(type) {
	case []byte:
		name = string(v)
	case string:
		name = v
	default:
		return "", false
	}
	name = strings.TrimSpace(name)
	return name, name != ""
}

type goSNMPClient struct {
	*gosnmp.GoSNMP
}

func (c goSNMPClient) Close() error {
	if c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}

func (r *SNMPResolver) dialGoSNMP(ctx context.Context, target string) (SNMPGetter, error) {
	port := r.Port
	if port == 0 {
		port = 161
	}
	community := r.Community
	if community == "" {
		community = "public"
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	g := &gosnmp.GoSNMP{
		Target:    target,
		Port:      port,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   timeout,
		Retries:   0,
		Context:   ctx,
	}
	if err := g.Connect(); err != nil {
		return nil, err
	}
	return goSNMPClient{g}, nil
}
