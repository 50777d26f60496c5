// Package scanning checks devices for open TCP ports and identifies what
// runs behind them.
//
// # Overview
//
// A PortScanner connects to every requested port of every device. Each
// open port gets a short banner read, after which the service name and any
// AI or developer agent behind it are inferred from the banner and port
// number. Connect failures and timeouts mean "closed" and are never errors.
//
// # Main Components
//
// ## Port Scanning
//
//   - PortScanner: bounded TCP connect scanner with progress reporting
//   - ScanPorts: scan a device list, one progress event per finished device
//   - ScanDevice: scan a single device
//   - DeepScan: scan all 65535 ports of one device in chunks
//
// ## Service Identification
//
//   - IdentifyService: service name from port number and banner
//   - DetectAgent: AI or developer agent from port number and banner
//   - SanitizeBanner: printable, length-limited banner text
//
// ## Port Lists
//
//   - ParsePorts: parse "22,80,8000-8010" style port specifications
//
// # Concurrency
//
// Concurrency is bounded at two levels: a FixedResourceManager caps the
// devices in flight and a per-device semaphore caps connect attempts.
// Progress is sent without blocking, so a slow consumer never stalls a
// scan.
package scanning
