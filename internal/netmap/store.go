package netmap

import (
	"context"
	"time"
)

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

// DeviceRecord is the persisted form of a device.
type DeviceRecord struct {
	ID         int64     `db:"id" json:"id"`
	MAC        string    `db:"mac_address" json:"mac_address"`
	IP         string    `db:"ip_address" json:"ip_address"`
	Hostname   *string   `db:"hostname" json:"hostname,omitempty"`
	Vendor     *string   `db:"vendor" json:"vendor,omitempty"`
	DeviceType string    `db:"device_type" json:"device_type"`
	CustomName *string   `db:"custom_name" json:"custom_name,omitempty"`
	Network    *string   `db:"network_id" json:"network_id,omitempty"`
	FirstSeen  time.Time `db:"first_seen" json:"first_seen"`
	LastSeen   time.Time `db:"last_seen" json:"last_seen"`
}

// ServiceRecord is the persisted form of an open service.
type ServiceRecord struct {
	DeviceID      int64   `db:"device_id" json:"device_id"`
	Port          int     `db:"port" json:"port"`
	Protocol      string  `db:"protocol" json:"protocol"`
	ServiceName   *string `db:"service_name" json:"service_name,omitempty"`
	Banner        *string `db:"banner" json:"banner,omitempty"`
	DetectedAgent *string `db:"detected_agent" json:"detected_agent,omitempty"`
}

// Store persists scan results. Both upserts are idempotent for a given key:
// devices by MAC address, services by (device, port, protocol).
type Store interface {
	UpsertDevice(ctx context.Context, rec DeviceRecord) (int64, error)
	UpsertDeviceService(ctx context.Context, deviceID int64, rec ServiceRecord) error
	ListDevices(ctx context.Context, network string) ([]DeviceRecord, error)
}

// ToRecord converts a device into its persisted form for the given network.
func ToRecord(d Device, network string) DeviceRecord {
	return DeviceRecord{
		MAC:        d.MAC,
		IP:         d.IP,
		Hostname:   optional(d.Hostname),
		Vendor:     optional(d.Vendor),
		DeviceType: d.DeviceType.String(),
		CustomName: optional(d.CustomName),
		Network:    optional(network),
		FirstSeen:  d.FirstSeen,
		LastSeen:   d.LastSeen,
	}
}

// ToServiceRecord converts a service into its persisted form.
func ToServiceRecord(deviceID int64, s Service) ServiceRecord {
	return ServiceRecord{
		DeviceID:      deviceID,
		Port:          int(s.Port),
		Protocol:      string(s.Protocol),
		ServiceName:   optional(s.ServiceName),
		Banner:        optional(s.Banner),
		DetectedAgent: optional(s.DetectedAgent),
	}
}

// FromRecord rebuilds a device from a persisted row. Loaded devices are
// offline until a scan sees them again.
func FromRecord(rec DeviceRecord) Device {
	return Device{
		MAC:        rec.MAC,
		IP:         rec.IP,
		Hostname:   deref(rec.Hostname),
		Vendor:     deref(rec.Vendor),
		DeviceType: ParseDeviceType(rec.DeviceType),
		CustomName: deref(rec.CustomName),
		FirstSeen:  rec.FirstSeen,
		LastSeen:   rec.LastSeen,
	}
}

// Persist writes devices and their open services to the store. Devices
// that fail to upsert are skipped; the first error is returned after all
// devices have been attempted. Persist stops at the next device once ctx
// is cancelled and returns ctx.Err().
func Persist(ctx context.Context, store Store, devices []Device, network string) error {
	var firstErr error
	for _, d := range devices {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, err := store.UpsertDevice(ctx, ToRecord(d, network))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, s := range d.OpenServices() {
			if err := store.UpsertDeviceService(ctx, id, ToServiceRecord(id, s)); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
