package discovery

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/netip"
	"os"
	"strings"
)

// Entry is one resolved (IP, MAC) neighbor.
type Entry struct {
	IP  string
	MAC string
}

// ARPTable reads the operating system's neighbor cache.
type ARPTable interface {
	// Entries returns every resolved neighbor.
	Entries(ctx context.Context) ([]Entry, error)
	// Lookup resolves a single IP address.
	Lookup(ctx context.Context, ip string) (string, bool)
}

const broadcastMAC = "FF:FF:FF:FF:FF:FF"

// NormalizeMAC converts a MAC address into canonical uppercase,
// colon-separated form, padding octets printed without a leading zero.
// Incomplete and malformed addresses are rejected.
func NormalizeMAC(mac string) (string, bool) {
	mac = strings.TrimSpace(mac)
	if mac == "" || strings.Contains(strings.ToLower(mac), "incomplete") {
		return "", false
	}

	parts := strings.FieldsFunc(mac, func(r rune) bool { return r == ':' || r == '-' })
	if len(parts) != 6 {
		return "", false
	}
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 || !isHexString(p) {
			return "", false
		}
		if len(p) == 1 {
			p = "0" + p
		}
		parts[i] = strings.ToUpper(p)
	}
	return strings.Join(parts, ":"), true
}

func isHexString(s string) bool {
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}

// ParseARPLine parses one line of BSD-style `arp -a` output:
//
//	? (192.168.1.1) at a4:2b:b0:c1:d2:e3 on en0 ifscope [ethernet]
//
// The MAC is returned as printed.
func ParseARPLine(line string) (Entry, bool) {
	open := strings.IndexByte(line, '(')
	closing := strings.IndexByte(line, ')')
	if open < 0 || closing <= open {
		return Entry{}, false
	}
	ip := line[open+1 : closing]
	if _, err := netip.ParseAddr(ip); err != nil {
		return Entry{}, false
	}

	at := strings.Index(line, " at ")
	if at < 0 {
		return Entry{}, false
	}
	rest := line[at+4:]
	if sp := strings.IndexByte(rest, ' '); sp >= 0 {
		rest = rest[:sp]
	}
	return Entry{IP: ip, MAC: rest}, true
}

// ParseARPOutput parses full `arp -a` output, keeping unusable addresses
// for the caller to filter.
func ParseARPOutput(out []byte) []Entry {
	var entries []Entry
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if e, ok := ParseARPLine(sc.Text()); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// ParseProcARP parses the contents of /proc/net/arp:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	192.168.1.1      0x1         0x2         a4:2b:b0:c1:d2:e3     *        eth0
//
// Entries with flags 0x0 have not been resolved and are reported as incomplete.
func ParseProcARP(data []byte) []Entry {
	var entries []Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		if _, err := netip.ParseAddr(fields[0]); err != nil {
			continue
		}
		mac := fields[3]
		if fields[2] == "0x0" {
			mac = "(incomplete)"
		}
		entries = append(entries, Entry{IP: fields[0], MAC: mac})
	}
	return entries
}

// filterEntries normalizes MACs and drops broadcast, incomplete and
// duplicate addresses. The first occurrence of a MAC wins.
func filterEntries(raw []Entry) []Entry {
	seen := make(map[string]bool, len(raw))
	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		mac, ok := NormalizeMAC(e.MAC)
		if !ok || mac == broadcastMAC || mac == unresolvedMAC {
			continue
		}
		if seen[mac] {
			continue
		}
		seen[mac] = true
		out = append(out, Entry{IP: e.IP, MAC: mac})
	}
	return out
}

// unresolvedMAC is how Linux reports a neighbor it has not resolved yet.
const unresolvedMAC = "00:00:00:00:00:00"

// CommandARPTable reads the neighbor cache with the arp(8) command.
type CommandARPTable struct {
	Runner CommandRunner
}

// Entries implements ARPTable by running `arp -a`.
func (t CommandARPTable) Entries(ctx context.Context) ([]Entry, error) {
	out, err := runner(t.Runner).Run(ctx, "arp", "-a")
	if err != nil {
		return nil, fmt.Errorf("failed to read arp table: %w", err)
	}
	return ParseARPOutput(out), nil
}

// Lookup implements ARPTable by running `arp -n <ip>`.
func (t CommandARPTable) Lookup(ctx context.Context, ip string) (string, bool) {
	out, err := runner(t.Runner).Run(ctx, "arp", "-n", ip)
	if err != nil {
		return "", false
	}
	for _, e := range ParseARPOutput(out) {
		if e.IP == ip {
			return NormalizeMAC(e.MAC)
		}
	}
	return "", false
}

// ProcARPTable reads the Linux neighbor cache from procfs.
type ProcARPTable struct {
	Path string
}

func (t ProcARPTable) read() ([]Entry, error) {
	path := t.Path
	if path == "" {
		path = "/proc/net/arp"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseProcARP(data), nil
}

// Entries implements ARPTable.
func (t ProcARPTable) Entries(_ context.Context) ([]Entry, error) {
	return t.read()
}

// Lookup implements ARPTable.
func (t ProcARPTable) Lookup(_ context.Context, ip string) (string, bool) {
	entries, err := t.read()
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IP == ip {
			mac, ok := NormalizeMAC(e.MAC)
			if !ok || mac == unresolvedMAC {
				return "", false
			}
			return mac, true
		}
	}
	return "", false
}
