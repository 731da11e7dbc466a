package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const deviceColumns = "id, name, kind, address, display_settings_json, last_seen"

// UpsertDevice inserts or refreshes a registered device record, keyed by name.
// Re-registration updates address, display settings, and last-seen.
func (s *Store) UpsertDevice(ctx context.Context, device *Device) (*Device, error) {
	if device == nil {
		return nil, errors.New("device is nil")
	}
	name := strings.TrimSpace(device.Name)
	if name == "" {
		return nil, errors.New("device requires a name")
	}
	if device.Kind == "" {
		device.Kind = "tablet"
	}
	device.Name = name
	device.LastSeen = time.Now().UTC()

	settingsJSON, err := marshalJSON(device.DisplaySettings)
	if err != nil {
		return nil, err
	}

	existing, err := s.findDeviceByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		device.ID = existing.ID
		_, err = s.db.ExecContext(
			ctx,
			`UPDATE devices SET kind = ?, address = ?, display_settings_json = ?, last_seen = ? WHERE id = ?`,
			device.Kind,
			nullableString(device.Address),
			settingsJSON,
			formatTime(device.LastSeen),
			device.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update device: %w", err)
		}
		return device, nil
	}

	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		device.ID,
		device.Name,
		device.Kind,
		nullableString(device.Address),
		settingsJSON,
		formatTime(device.LastSeen),
	)
	if err != nil {
		return nil, fmt.Errorf("insert device: %w", err)
	}
	return device, nil
}

// TouchDevice refreshes a device's last-seen timestamp.
func (s *Store) TouchDevice(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE devices SET last_seen = ? WHERE id = ?`,
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	return nil
}

// ListDevices returns registered devices ordered by most recently seen.
func (s *Store) ListDevices(ctx context.Context) ([]*Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY last_seen DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

func (s *Store) findDeviceByName(ctx context.Context, name string) (*Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE name = ?`, name)
	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	return device, nil
}

func scanDevice(scanner interface{ Scan(dest ...any) error }) (*Device, error) {
	var (
		id          string
		name        string
		kind        string
		address     sql.NullString
		settingsRaw sql.NullString
		lastSeenRaw sql.NullString
	)

	if err := scanner.Scan(&id, &name, &kind, &address, &settingsRaw, &lastSeenRaw); err != nil {
		return nil, err
	}

	device := &Device{
		ID:      id,
		Name:    name,
		Kind:    kind,
		Address: address.String,
	}
	if err := unmarshalJSON(settingsRaw, &device.DisplaySettings); err != nil {
		return nil, err
	}
	var err error
	if device.LastSeen, err = parseTime(lastSeenRaw); err != nil {
		return nil, err
	}
	return device, nil
}
