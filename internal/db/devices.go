package db

import (
	"context"
	"time"

	"github.com/anstrom/netrecon/internal/metrics"
	"github.com/anstrom/netrecon/internal/netmap"
)

const upsertDeviceQuery = `
	INSERT INTO devices (
		mac_address, ip_address, hostname, vendor, device_type,
		custom_name, network_id, first_seen, last_seen
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (mac_address) DO UPDATE SET
		ip_address = excluded.ip_address,
		hostname = COALESCE(excluded.hostname, devices.hostname),
		vendor = COALESCE(excluded.vendor, devices.vendor),
		device_type = excluded.device_type,
		custom_name = COALESCE(devices.custom_name, excluded.custom_name),
		network_id = COALESCE(excluded.network_id, devices.network_id),
		last_seen = excluded.last_seen
	RETURNING id`

const upsertServiceQuery = `
	INSERT INTO device_services (
		device_id, port, protocol, service_name, banner, detected_agent, updated_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (device_id, port, protocol) DO UPDATE SET
		service_name = excluded.service_name,
		banner = excluded.banner,
		detected_agent = excluded.detected_agent,
		updated_at = excluded.updated_at`

const deviceColumns = `
	id, mac_address, ip_address, hostname, vendor, device_type,
	custom_name, network_id, first_seen, last_seen`

// DeviceRepository stores devices and their services. It implements
// netmap.Store.
type DeviceRepository struct {
	db      *DB
	metrics *metrics.PrometheusMetrics
	now     func() time.Time
}

var _ netmap.Store = (*DeviceRepository)(nil)

// NewDeviceRepository creates a new device repository.
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{
		db:      db,
		metrics: metrics.GetGlobalMetrics(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *DeviceRepository) observe(operation string, start time.Time, err error) {
	if r.metrics != nil {
		r.metrics.RecordStoreQuery(operation, time.Since(start), err)
	}
}

// UpsertDevice inserts the device or updates the row with the same MAC
// address and returns its ID. The first-seen time and a custom name set by
// the user are kept; empty hostnames and vendors never overwrite known ones.
func (r *DeviceRepository) UpsertDevice(ctx context.Context, rec netmap.DeviceRecord) (id int64, err error) {
	start := time.Now()
	defer func() { r.observe("upsert_device", start, err) }()

	now := r.now()
	if rec.FirstSeen.IsZero() {
		rec.FirstSeen = now
	}
	if rec.LastSeen.IsZero() {
		rec.LastSeen = now
	}

	err = r.db.QueryRowxContext(ctx, r.db.Rebind(upsertDeviceQuery),
		rec.MAC, rec.IP, rec.Hostname, rec.Vendor, rec.DeviceType,
		rec.CustomName, rec.Network, rec.FirstSeen, rec.LastSeen,
	).Scan(&id)
	if err != nil {
		return 0, sanitizeDBError("upsert device", err)
	}
	return id, nil
}

// UpsertDeviceService inserts or updates one open service of a device.
func (r *DeviceRepository) UpsertDeviceService(ctx context.Context, deviceID int64, rec netmap.ServiceRecord) (err error) {
	start := time.Now()
	defer func() { r.observe("upsert_service", start, err) }()

	if rec.Protocol == "" {
		rec.Protocol = string(netmap.ProtocolTCP)
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(upsertServiceQuery),
		deviceID, rec.Port, rec.Protocol, rec.ServiceName, rec.Banner, rec.DetectedAgent, r.now(),
	)
	if err != nil {
		return sanitizeDBError("upsert device service", err)
	}
	return nil
}

// ListDevices returns stored devices ordered by IP address. An empty
// network returns devices from every network.
func (r *DeviceRepository) ListDevices(ctx context.Context, network string) (records []netmap.DeviceRecord, err error) {
	start := time.Now()
	defer func() { r.observe("list_devices", start, err) }()

	query := `SELECT` + deviceColumns + ` FROM devices`
	var args []any
	if network != "" {
		query += ` WHERE network_id = ?`
		args = append(args, network)
	}
	query += ` ORDER BY ip_address`

	records = []netmap.DeviceRecord{}
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, sanitizeDBError("list devices", err)
	}
	return records, nil
}

// ListDeviceServices returns the stored services of a device ordered by
// port.
func (r *DeviceRepository) ListDeviceServices(ctx context.Context, deviceID int64) (records []netmap.ServiceRecord, err error) {
	start := time.Now()
	defer func() { r.observe("list_services", start, err) }()

	query := r.db.Rebind(`
		SELECT device_id, port, protocol, service_name, banner, detected_agent
		FROM device_services
		WHERE device_id = ?
		ORDER BY port, protocol`)

	records = []netmap.ServiceRecord{}
	if err := r.db.SelectContext(ctx, &records, query, deviceID); err != nil {
		return nil, sanitizeDBError("list device services", err)
	}
	return records, nil
}
