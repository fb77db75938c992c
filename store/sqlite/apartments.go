package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnitTaken is returned when an apartment unit label is already in use.
var ErrUnitTaken = errors.New("sqlite: unit already registered")

// Apartment is one managed unit in the building.
type Apartment struct {
	ID         string    `json:"id"`
	Unit       string    `json:"unit"`
	Floor      int       `json:"floor"`
	AreaM2     float64   `json:"area_m2"`
	ResidentID string    `json:"resident_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateApartment registers a new unit.
func (s *Store) CreateApartment(ctx context.Context, unit string, floor int, areaM2 float64) (Apartment, error) {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return Apartment{}, fmt.Errorf("sqlite: unit label is required")
	}

	now := time.Now().UTC()
	apartment := Apartment{
		ID:        uuid.NewString(),
		Unit:      unit,
		Floor:     floor,
		AreaM2:    areaM2,
		CreatedAt: now.Truncate(time.Millisecond),
		UpdatedAt: now.Truncate(time.Millisecond),
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO apartments (id, unit, floor, area_m2, resident_id, created_at, updated_at)
VALUES (?, ?, ?, ?, NULL, ?, ?)`,
		apartment.ID, apartment.Unit, apartment.Floor, apartment.AreaM2,
		toMillis(now), toMillis(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Apartment{}, ErrUnitTaken
		}
		return Apartment{}, fmt.Errorf("sqlite: create apartment: %w", err)
	}
	return apartment, nil
}

// GetApartment loads one unit by ID.
func (s *Store) GetApartment(ctx context.Context, id string) (Apartment, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, unit, floor, area_m2, resident_id, created_at, updated_at
FROM apartments WHERE id = ?`, id)
	return scanApartment(row)
}

// ListApartments returns all units ordered by unit label.
func (s *Store) ListApartments(ctx context.Context) ([]Apartment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, unit, floor, area_m2, resident_id, created_at, updated_at
FROM apartments ORDER BY unit`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list apartments: %w", err)
	}
	defer rows.Close()

	var apartments []Apartment
	for rows.Next() {
		apartment, err := scanApartment(rows)
		if err != nil {
			return nil, err
		}
		apartments = append(apartments, apartment)
	}
	return apartments, rows.Err()
}

// AssignResident links a resident account to a unit. An empty residentID
// clears the assignment.
func (s *Store) AssignResident(ctx context.Context, apartmentID, residentID string) error {
	var resident any
	if residentID != "" {
		resident = residentID
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE apartments SET resident_id = ?, updated_at = ? WHERE id = ?",
		resident, time.Now().UTC().UnixMilli(), apartmentID)
	if err != nil {
		return fmt.Errorf("sqlite: assign resident: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanApartment(row rowScanner) (Apartment, error) {
	var apartment Apartment
	var resident sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(&apartment.ID, &apartment.Unit, &apartment.Floor,
		&apartment.AreaM2, &resident, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Apartment{}, ErrNotFound
	}
	if err != nil {
		return Apartment{}, fmt.Errorf("sqlite: scan apartment: %w", err)
	}
	apartment.ResidentID = resident.String
	apartment.CreatedAt = fromMillis(createdAt)
	apartment.UpdatedAt = fromMillis(updatedAt)
	return apartment, nil
}
