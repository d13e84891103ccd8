package homekit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/hcbridge/internal/catalog"
	"github.com/nerrad567/hcbridge/internal/shadow"
)

// AccessoryRecord is the persisted form of a published accessory. Key is
// unique across devices, scenes and variables; DeviceID is the hub id.
type AccessoryRecord struct {
	Key              string `json:"key"`
	DeviceID         string `json:"device_id"`
	AID              uint64 `json:"aid"`
	Name             string `json:"name"`
	RoomID           string `json:"room_id,omitempty"`
	DeviceType       string `json:"device_type"`
	IsSecuritySystem bool   `json:"is_security_system"`
	ReviewedPass     string `json:"reviewed_pass,omitempty"`
	// NextIID is the next free instance id; ids below it are never reused.
	NextIID   uint64          `json:"-"`
	Services  []ServiceRecord `json:"services"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ServiceRecord is one persisted service of an accessory. IID and
// CharacteristicIIDs are the HAP instance ids, the latter in the order the
// characteristics appear on the service (Name first).
type ServiceRecord struct {
	Subtype            string                  `json:"subtype"`
	Kind               catalog.Service         `json:"kind"`
	DisplayName        string                  `json:"display_name"`
	IID                uint64                  `json:"iid"`
	CharacteristicIIDs []uint64                `json:"characteristic_iids,omitempty"`
	Characteristics    []shadow.Characteristic `json:"characteristics"`
}

// Registry persists accessory identity across restarts so that HomeKit
// accessory ids and service subtypes stay stable.
type Registry interface {
	List(ctx context.Context) ([]AccessoryRecord, error)
	Save(ctx context.Context, rec AccessoryRecord) error
	Delete(ctx context.Context, key string) error
}

// SQLiteRegistry implements Registry on the accessories tables.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry creates a registry on an open, migrated connection.
func NewSQLiteRegistry(db *sql.DB) *SQLiteRegistry {
	return &SQLiteRegistry{db: db}
}

// List returns every accessory with its services, ordered by aid.
func (r *SQLiteRegistry) List(ctx context.Context) ([]AccessoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, aid, name, room_id, device_type, is_security_system,
			reviewed_pass, next_iid, created_at, updated_at
		FROM accessories
		ORDER BY aid`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying accessories: %w", ErrRegistry, err)
	}
	defer rows.Close()

	var records []AccessoryRecord
	index := make(map[string]int)
	for rows.Next() {
		var (
			rec                  AccessoryRecord
			secSystem            int
			createdAt, updatedAt string
		)
		if err := rows.Scan(&rec.Key, &rec.AID, &rec.Name, &rec.RoomID, &rec.DeviceType,
			&secSystem, &rec.ReviewedPass, &rec.NextIID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning accessory: %w", ErrRegistry, err)
		}
		rec.IsSecuritySystem = secSystem != 0
		rec.DeviceID = deviceIDFromKey(rec.DeviceType, rec.Key)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by Save
		rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by Save
		index[rec.Key] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating accessories: %w", ErrRegistry, err)
	}

	svcRows, err := r.db.QueryContext(ctx, `
		SELECT device_id, subtype, kind, display_name, iid, characteristic_iids, characteristics
		FROM accessory_services
		ORDER BY device_id, rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying services: %w", ErrRegistry, err)
	}
	defer svcRows.Close()

	for svcRows.Next() {
		var (
			key, kind, iidsJSON, charsJSON string
			svc                            ServiceRecord
		)
		if err := svcRows.Scan(&key, &svc.Subtype, &kind, &svc.DisplayName, &svc.IID, &iidsJSON, &charsJSON); err != nil {
			return nil, fmt.Errorf("%w: scanning service: %w", ErrRegistry, err)
		}
		svc.Kind = catalog.Service(kind)
		if err := json.Unmarshal([]byte(iidsJSON), &svc.CharacteristicIIDs); err != nil {
			return nil, fmt.Errorf("%w: decoding instance ids of %s: %w", ErrRegistry, key, err)
		}
		if err := json.Unmarshal([]byte(charsJSON), &svc.Characteristics); err != nil {
			return nil, fmt.Errorf("%w: decoding characteristics of %s: %w", ErrRegistry, key, err)
		}
		i, ok := index[key]
		if !ok {
			continue
		}
		records[i].Services = append(records[i].Services, svc)
	}
	if err := svcRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating services: %w", ErrRegistry, err)
	}
	return records, nil
}

// Save upserts the accessory and replaces its services.
func (r *SQLiteRegistry) Save(ctx context.Context, rec AccessoryRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting transaction: %w", ErrRegistry, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accessories (
			device_id, aid, name, room_id, device_type, is_security_system,
			reviewed_pass, next_iid, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			name = excluded.name,
			room_id = excluded.room_id,
			device_type = excluded.device_type,
			is_security_system = excluded.is_security_system,
			reviewed_pass = excluded.reviewed_pass,
			next_iid = excluded.next_iid,
			updated_at = excluded.updated_at`,
		rec.Key, int64(rec.AID), rec.Name, rec.RoomID, rec.DeviceType,
		boolToInt(rec.IsSecuritySystem), rec.ReviewedPass, int64(rec.NextIID),
		rec.CreatedAt.Format(time.RFC3339), rec.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: upserting accessory %s: %w", ErrRegistry, rec.Key, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM accessory_services WHERE device_id = ?`, rec.Key); err != nil {
		return fmt.Errorf("%w: clearing services of %s: %w", ErrRegistry, rec.Key, err)
	}
	for _, svc := range rec.Services {
		chars, err := json.Marshal(svc.Characteristics)
		if err != nil {
			return fmt.Errorf("%w: marshalling characteristics: %w", ErrRegistry, err)
		}
		iids := svc.CharacteristicIIDs
		if iids == nil {
			iids = []uint64{}
		}
		iidsJSON, err := json.Marshal(iids)
		if err != nil {
			return fmt.Errorf("%w: marshalling instance ids: %w", ErrRegistry, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO accessory_services (
				device_id, subtype, kind, display_name, iid, characteristic_iids, characteristics
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.Key, svc.Subtype, string(svc.Kind), svc.DisplayName,
			int64(svc.IID), string(iidsJSON), string(chars))
		if err != nil {
			return fmt.Errorf("%w: inserting service %s: %w", ErrRegistry, svc.Subtype, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %w", ErrRegistry, err)
	}
	return nil
}

// Delete removes the accessory and, by cascade, its services.
// Deleting an unknown key is not an error.
func (r *SQLiteRegistry) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accessories WHERE device_id = ?`, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: deleting accessory %s: %w", ErrRegistry, key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
