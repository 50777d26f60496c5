package scanning

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/anstrom/netrecon/internal/errors"
)

const expectedPortRangeParts = 2

// ParsePorts parses a comma separated list of ports and inclusive ranges,
// for example "22,80,8000-8010". The result is sorted and free of
// duplicates. Port 0 is rejected.
func ParsePorts(spec string) ([]uint16, error) {
	seen := make(map[uint16]struct{})
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := parsePortPart(part, seen); err != nil {
			return nil, err
		}
	}
	if len(seen) == 0 {
		return nil, errors.ErrInvalidPorts(0)
	}

	ports := make([]uint16, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports, nil
}

func parsePortPart(part string, seen map[uint16]struct{}) error {
	if !strings.Contains(part, "-") {
		p, err := parseSinglePort(part)
		if err != nil {
			return err
		}
		seen[p] = struct{}{}
		return nil
	}

	rangeParts := strings.Split(part, "-")
	if len(rangeParts) != expectedPortRangeParts {
		return invalidPorts(fmt.Sprintf("invalid port range format: %s", part))
	}
	start, err := parseSinglePort(rangeParts[0])
	if err != nil {
		return err
	}
	end, err := parseSinglePort(rangeParts[1])
	if err != nil {
		return err
	}
	if start > end {
		return invalidPorts(fmt.Sprintf("invalid port range %s: start port must not exceed end port", part))
	}
	for p := int(start); p <= int(end); p++ {
		seen[uint16(p)] = struct{}{}
	}
	return nil
}

func parseSinglePort(s string) (uint16, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, invalidPorts(fmt.Sprintf("invalid port: %s", s))
	}
	if port < 1 || port > 65535 {
		return 0, invalidPorts(fmt.Sprintf("invalid port: %d (must be 1-65535)", port))
	}
	return uint16(port), nil
}

func invalidPorts(msg string) error {
	return errors.NewScanError(errors.CodeValidation, msg)
}
