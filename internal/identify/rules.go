package identify

import "github.com/anstrom/netrecon/internal/netmap"

// Rule is one step of the classification cascade.
type Rule struct {
	Name  string
	Match func(Evidence) bool
	Type  netmap.DeviceType
}

// Rules returns a copy of the cascade in evaluation order.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

const (
	portSSH       = 22
	portTelnet    = 23
	portDNS       = 53
	portHTTP      = 80
	portHTTPS     = 443
	portSMB       = 445
	portAFP       = 548
	portIPP       = 631
	portRDP       = 3389
	portSynology  = 5000
	portSynoTLS   = 5001
	portCastHTTP  = 8008
	portCastTLS   = 8009
	portPrinter   = 9100
	portSamsungTV = 9197
	portIPhone    = 62078
)

var (
	tvHostnames = []string{
		"tv", "roku", "chromecast", "firestick", "fire-stick", "bravia", "webos", "tizen",
		"shield", "kodi", "plex", "sonos",
	}
	// No bare "switch": it would match switchbot.
	consoleHostnames = []string{
		"xbox", "playstation", "ps4", "ps5", "nintendo", "steamdeck", "steam-deck",
	}
	phoneHostnames    = []string{"iphone", "ipad", "android", "galaxy", "pixel"}
	computerHostnames = []string{
		"macbook", "imac", "mac-mini", "macmini", "mac-pro", "mac-studio", "desktop",
		"workstation", "ubuntu", "debian", "fedora", "archlinux", "manjaro", "linuxmint",
		"centos", "rocky", "opensuse", "linux",
	}
	iotHostnames = []string{
		"shelly", "tasmota", "tuya", "sonoff", "esp-", "esp_", "esp32", "esp8266", "wled",
		"switchbot", "yeelight",
	}
	printerHostnames = []string{
		"printer", "laserjet", "officejet", "deskjet", "epson", "canon", "brother", "xerox",
		"lexmark", "kyocera",
	}
	nasHostnames = []string{
		"nas", "synology", "diskstation", "qnap", "truenas", "freenas", "unraid", "readynas",
	}
	routerHostnames = []string{
		"router", "gateway", "openwrt", "dd-wrt", "pfsense", "opnsense", "unifi", "ubnt",
		"mikrotik", "fritz", "eero", "orbi", "airport", "access-point", "accesspoint",
	}
	routerVendors = []string{"tp-link", "netgear", "asus", "ubiquiti", "cisco"}
)

func hostnameRule(name string, keywords []string, t netmap.DeviceType) Rule {
	return Rule{
		Name:  name,
		Match: func(e Evidence) bool { return e.HostnameHas(keywords...) },
		Type:  t,
	}
}

var rules = []Rule{
	hostnameRule("hostname-tv", tvHostnames, netmap.DeviceTypeSmartTV),
	hostnameRule("hostname-console", consoleHostnames, netmap.DeviceTypeGameConsole),
	hostnameRule("hostname-phone", phoneHostnames, netmap.DeviceTypePhone),
	hostnameRule("hostname-computer", computerHostnames, netmap.DeviceTypeComputer),
	hostnameRule("hostname-iot", iotHostnames, netmap.DeviceTypeIoT),
	hostnameRule("hostname-printer", printerHostnames, netmap.DeviceTypePrinter),
	hostnameRule("hostname-nas", nasHostnames, netmap.DeviceTypeNAS),
	hostnameRule("hostname-router", routerHostnames, netmap.DeviceTypeRouter),

	{
		Name: "dns-with-web-admin",
		Match: func(e Evidence) bool {
			return e.HasAny(portDNS) && e.HasAny(portHTTP, portHTTPS)
		},
		Type: netmap.DeviceTypeRouter,
	},
	{
		Name: "apple-sync-port",
		Match: func(e Evidence) bool {
			return e.HasAny(portIPhone) && e.VendorIs("apple")
		},
		Type: netmap.DeviceTypePhone,
	},
	{
		Name: "apple-with-ssh-or-afp",
		Match: func(e Evidence) bool {
			return e.VendorIs("apple") && e.HasAny(portSSH, portAFP)
		},
		Type: netmap.DeviceTypeComputer,
	},
	{
		Name:  "apple",
		Match: func(e Evidence) bool { return e.VendorIs("apple") },
		Type:  netmap.DeviceTypePhone,
	},
	{
		Name:  "cast-ports",
		Match: func(e Evidence) bool { return e.HasAny(portCastHTTP, portCastTLS, portSamsungTV) },
		Type:  netmap.DeviceTypeSmartTV,
	},
	{
		Name: "tv-vendor",
		Match: func(e Evidence) bool {
			return (e.VendorIs("samsung", "lg") && !e.HasAny(portSSH)) || e.VendorIs("roku", "sonos")
		},
		Type: netmap.DeviceTypeSmartTV,
	},
	{
		Name: "console-vendor",
		Match: func(e Evidence) bool {
			return e.VendorIs("nintendo") || (e.VendorIs("sony") && !e.HasAny(portSSH))
		},
		Type: netmap.DeviceTypeGameConsole,
	},
	{
		Name: "nas-ports",
		Match: func(e Evidence) bool {
			return e.HasAny(portSSH, portTelnet) && e.HasAny(portSMB, portAFP) &&
				e.HasAny(portSynology, portSynoTLS)
		},
		Type: netmap.DeviceTypeNAS,
	},
	{
		Name:  "nas-vendor",
		Match: func(e Evidence) bool { return e.VendorIs("synology", "qnap") },
		Type:  netmap.DeviceTypeNAS,
	},
	{
		Name:  "printer-ports",
		Match: func(e Evidence) bool { return e.HasAny(portPrinter, portIPP) },
		Type:  netmap.DeviceTypePrinter,
	},
	{
		Name: "hp-web-without-ssh",
		Match: func(e Evidence) bool {
			return e.VendorIs("hp") && e.HasAny(portHTTP) && !e.HasAny(portSSH)
		},
		Type: netmap.DeviceTypePrinter,
	},
	{
		Name: "laptop-vendor-with-remote-access",
		Match: func(e Evidence) bool {
			return e.HasAny(portSSH, portRDP) && e.VendorIs("dell", "lenovo", "hp")
		},
		Type: netmap.DeviceTypeLaptop,
	},
	{
		Name:  "remote-access",
		Match: func(e Evidence) bool { return e.HasAny(portSSH, portRDP) },
		Type:  netmap.DeviceTypeComputer,
	},
	{
		Name:  "iot-vendor",
		Match: func(e Evidence) bool { return e.VendorIs("espressif", "amazon") },
		Type:  netmap.DeviceTypeIoT,
	},
	{
		Name: "network-vendor-with-web-admin",
		Match: func(e Evidence) bool {
			return e.VendorIs(routerVendors...) && e.HasAny(portHTTP, portHTTPS)
		},
		Type: netmap.DeviceTypeRouter,
	},
	{
		Name:  "phone-vendor",
		Match: func(e Evidence) bool { return e.VendorIs("samsung", "xiaomi", "google", "huawei") },
		Type:  netmap.DeviceTypePhone,
	},
	{
		Name:  "raspberry-pi",
		Match: func(e Evidence) bool { return e.VendorIs("raspberry") },
		Type:  netmap.DeviceTypeComputer,
	},
}
