package discovery

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"strings"
)

// RouteTable resolves the default IPv4 gateway.
type RouteTable interface {
	// DefaultGateway returns the gateway address, or "" when there is no
	// default route.
	DefaultGateway(ctx context.Context) (string, error)
}

// ParseNetstatGateway extracts the default IPv4 gateway from `netstat -nr`
// output. Both the BSD form ("default 192.168.1.1 UGScg en0") and the
// Linux form ("0.0.0.0 192.168.1.1 0.0.0.0 UG 0 0 0 eth0") are accepted.
func ParseNetstatGateway(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[0] != "default" && fields[0] != "0.0.0.0" {
			continue
		}
		addr, err := netip.ParseAddr(fields[1])
		if err != nil || !addr.Is4() || addr.IsUnspecified() {
			continue
		}
		return addr.String()
	}
	return ""
}

// ParseProcRoute extracts the default gateway from /proc/net/route, where
// addresses are little-endian hex:
//
//	Iface  Destination  Gateway   Flags  RefCnt  Use  Metric  Mask  ...
//	eth0   00000000     0101A8C0  0003   0       0    100     00000000
func ParseProcRoute(data []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 || fields[1] != "00000000" {
			continue
		}
		raw, err := hex.DecodeString(fields[2])
		if err != nil || len(raw) != 4 {
			continue
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], binary.LittleEndian.Uint32(raw))
		addr := netip.AddrFrom4(b)
		if addr.IsUnspecified() {
			continue
		}
		return addr.String()
	}
	return ""
}

// CommandRouteTable resolves the gateway with `netstat -nr`.
type CommandRouteTable struct {
	Runner CommandRunner
}

// DefaultGateway implements RouteTable.
func (t CommandRouteTable) DefaultGateway(ctx context.Context) (string, error) {
	out, err := runner(t.Runner).Run(ctx, "netstat", "-nr")
	if err != nil {
		return "", fmt.Errorf("failed to read route table: %w", err)
	}
	return ParseNetstatGateway(out), nil
}

// ProcRouteTable resolves the gateway from procfs.
type ProcRouteTable struct {
	Path string
}

// DefaultGateway implements RouteTable.
func (t ProcRouteTable) DefaultGateway(_ context.Context) (string, error) {
	path := t.Path
	if path == "" {
		path = "/proc/net/route"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseProcRoute(data), nil
}
