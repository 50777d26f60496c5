package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/netrecon/internal/netmap"
)

const (
	maxBannerLength = 50
	emptyCell       = "-"
)

// orDash renders empty values as "-".
func orDash(s string) string {
	if s == "" {
		return emptyCell
	}
	return s
}

// truncateString shortens s to maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// serviceLine renders one open service, e.g. "11434/tcp Ollama [AI: Ollama]".
func serviceLine(s netmap.Service) string {
	name := s.ServiceName
	if name == "" {
		name = "unknown"
	}
	line := fmt.Sprintf("%d/%s %s", s.Port, strings.ToLower(string(s.Protocol)), name)
	if s.DetectedAgent != "" {
		line += fmt.Sprintf(" [AI: %s]", s.DetectedAgent)
	}
	return line
}

// formatProgress renders a progress event as a single status line.
func formatProgress(p netmap.ScanProgress) string {
	switch p.Phase {
	case netmap.PhasePortScan:
		line := fmt.Sprintf("%s: %d/%d ports (%.0f%%)", p.Phase, p.PortsScanned, p.TotalPorts, p.Percent())
		if p.CurrentDevice != "" {
			line += " " + p.CurrentDevice
		}
		return line
	case netmap.PhaseComplete:
		return fmt.Sprintf("%s: %d devices", p.Phase, p.DevicesFound)
	default:
		return fmt.Sprintf("%s: %d devices found", p.Phase, p.DevicesFound)
	}
}

// printDiscovered prints discovered devices as IP, MAC, HOSTNAME rows.
func printDiscovered(w io.Writer, devices []netmap.Device) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "0 devices found")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("IP", "MAC", "Hostname")
	for _, d := range devices {
		_ = table.Append([]string{d.IP, d.MAC, orDash(d.Hostname)})
	}
	_ = table.Render()
	fmt.Fprintf(w, "%d devices found\n", len(devices))
}

// printScanResult prints the device table, the open services of each
// device and a summary of detected agents.
func printScanResult(w io.Writer, devices []netmap.Device, verbose bool) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "0 devices found")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("IP", "Name", "Type", "Vendor")
	for _, d := range devices {
		_ = table.Append([]string{d.IP, d.DisplayName(), d.DeviceType.String(), orDash(d.Vendor)})
	}
	_ = table.Render()

	for _, d := range devices {
		open := d.OpenServices()
		if len(open) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s (%s)\n", d.IP, d.DisplayName())
		for _, s := range open {
			fmt.Fprintf(w, "    %s\n", serviceLine(s))
			if verbose && s.Banner != "" {
				fmt.Fprintf(w, "        %s\n", truncateString(s.Banner, maxBannerLength))
			}
		}
	}

	var agents []netmap.Device
	for _, d := range devices {
		if len(d.DetectedAgents) > 0 {
			agents = append(agents, d)
		}
	}
	fmt.Fprintf(w, "\n%d devices found\n", len(devices))
	if len(agents) == 0 {
		return
	}

	fmt.Fprintln(w, "\nAI Agents Detected")
	agentTable := tablewriter.NewWriter(w)
	agentTable.Header("Device", "IP", "Agents")
	for _, d := range agents {
		_ = agentTable.Append([]string{d.DisplayName(), d.IP, strings.Join(d.DetectedAgents, ", ")})
	}
	_ = agentTable.Render()
}

// printPortScan prints the result of scanning a single address.
func printPortScan(w io.Writer, d netmap.Device) {
	fmt.Fprintf(w, "Host:        %s\n", d.IP)
	fmt.Fprintf(w, "Device type: %s\n", d.DeviceType)
	fmt.Fprintf(w, "Vendor:      %s\n", orDash(d.Vendor))
	if len(d.DetectedAgents) > 0 {
		fmt.Fprintf(w, "AI agents:   %s\n", strings.Join(d.DetectedAgents, ", "))
	}

	open := d.OpenServices()
	if len(open) == 0 {
		fmt.Fprintln(w, "No open ports")
		return
	}

	fmt.Fprintln(w, "Open ports:")
	for _, s := range open {
		fmt.Fprintf(w, "    %s\n", serviceLine(s))
		if s.Banner != "" {
			fmt.Fprintf(w, "        %s\n", truncateString(s.Banner, maxBannerLength))
		}
	}
}

// printStoredDevices prints persisted device records.
func printStoredDevices(w io.Writer, records []netmap.DeviceRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No stored devices")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("IP", "MAC", "Name", "Type", "Vendor", "Network", "Last Seen")
	for _, r := range records {
		d := netmap.FromRecord(r)
		network := ""
		if r.Network != nil {
			network = *r.Network
		}
		_ = table.Append([]string{
			d.IP,
			d.MAC,
			d.DisplayName(),
			d.DeviceType.String(),
			orDash(d.Vendor),
			orDash(network),
			r.LastSeen.Local().Format("2006-01-02 15:04"),
		})
	}
	_ = table.Render()
	fmt.Fprintf(w, "%d devices\n", len(records))
}
