package scanning

import "strings"

// bannerRule maps banner keywords onto a name. Rules are evaluated in order
// and the first rule with any matching keyword wins.
type bannerRule struct {
	keywords []string
	name     string
}

func (r bannerRule) matches(lower string) bool {
	for _, k := range r.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

var serviceBannerRules = []bannerRule{
	{[]string{"ssh"}, "SSH"},
	{[]string{"http", "html"}, "HTTP"},
	{[]string{"ftp"}, "FTP"},
	{[]string{"smtp"}, "SMTP"},
	{[]string{"ollama"}, "Ollama API"},
	{[]string{"openclaw"}, "OpenClaw"},
}

var servicePorts = map[uint16]string{
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	53:    "DNS",
	80:    "HTTP",
	443:   "HTTPS",
	139:   "SMB",
	445:   "SMB",
	548:   "AFP",
	554:   "RTSP",
	3389:  "RDP",
	5000:  "Synology",
	5001:  "Synology",
	8080:  "HTTP Alt",
	8443:  "HTTP Alt",
	9100:  "Printer",
	62078: "Apple Device",
	8008:  "Chromecast",
	8009:  "Chromecast",
	11434: "Ollama",
	9229:  "Node Debug",
	8501:  "Streamlit",
	3000:  "Dev Server",
	3001:  "Dev Server",
	8000:  "Python Server",
	8001:  "Python Server",
	18789: "OpenClaw Gateway",
	18793: "OpenClaw Canvas",
}

// IdentifyService names the service on an open port. Banner keywords take
// precedence over the well-known port table. Unknown ports without a
// recognizable banner yield "".
func IdentifyService(port uint16, banner string) string {
	if banner != "" {
		lower := strings.ToLower(banner)
		for _, r := range serviceBannerRules {
			if r.matches(lower) {
				return r.name
			}
		}
	}
	return servicePorts[port]
}

// httpGreetingPorts receive a GET request before the banner read, since web
// servers wait for the client to speak first.
var httpGreetingPorts = map[uint16]bool{
	80: true, 8080: true, 8000: true, 8001: true, 3000: true,
	3001: true, 8008: true, 11434: true, 18789: true, 18793: true,
}

const httpGreeting = "GET / HTTP/1.0\r\nHost: localhost\r\n\r\n"

// SanitizeBanner keeps printable ASCII and whitespace, caps the result at
// maxBannerChars and trims it.
func SanitizeBanner(raw []byte) string {
	var b strings.Builder
	for _, c := range raw {
		if b.Len() == maxBannerChars {
			break
		}
		if (c >= 0x21 && c <= 0x7e) || c == ' ' || c == '\t' || c == '\n' || c == '\f' || c == '\r' {
			b.WriteByte(c)
		}
	}
	return strings.TrimSpace(b.String())
}
