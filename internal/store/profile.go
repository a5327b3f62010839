package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/tryon/internal/overlay"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Profile is a named set of overlay parameters for one eyewear asset.
type Profile struct {
	ID        string
	Name      string
	Asset     string
	Params    overlay.Params
	PeriodMs  int
	Samples   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileRepository provides CRUD operations for profiles.
type ProfileRepository struct {
	db *sql.DB
}

// Profiles returns the profile repository for this store.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

const profileColumns = `id, name, asset, baseline_eye_distance, scale_x, scale_y,
	offset_x, offset_y, depth, period_ms, samples, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	p := &Profile{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Asset,
		&p.Params.BaselineEyeDistance, &p.Params.ScaleX, &p.Params.ScaleY,
		&p.Params.OffsetX, &p.Params.OffsetY, &p.Params.Depth,
		&p.PeriodMs, &p.Samples, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new profile into the database.
func (r *ProfileRepository) Create(p *Profile) error {
	if err := p.Params.Validate(); err != nil {
		return err
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Asset,
		p.Params.BaselineEyeDistance, p.Params.ScaleX, p.Params.ScaleY,
		p.Params.OffsetX, p.Params.OffsetY, p.Params.Depth,
		p.PeriodMs, p.Samples, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetByID retrieves a profile by its ID.
func (r *ProfileRepository) GetByID(id string) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetByName retrieves a profile by its name.
func (r *ProfileRepository) GetByName(name string) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(
		`SELECT `+profileColumns+` FROM profiles WHERE name = ?`, name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List retrieves all profiles ordered by name.
func (r *ProfileRepository) List() ([]*Profile, error) {
	rows, err := r.db.Query(`SELECT ` + profileColumns + ` FROM profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

// Update updates an existing profile. The sample count is owned by the
// sample repository and is not written.
func (r *ProfileRepository) Update(p *Profile) error {
	if err := p.Params.Validate(); err != nil {
		return err
	}

	p.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE profiles SET name = ?, asset = ?, baseline_eye_distance = ?,
			scale_x = ?, scale_y = ?, offset_x = ?, offset_y = ?, depth = ?,
			period_ms = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Asset, p.Params.BaselineEyeDistance,
		p.Params.ScaleX, p.Params.ScaleY, p.Params.OffsetX, p.Params.OffsetY, p.Params.Depth,
		p.PeriodMs, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}

	return expectAffected(result)
}

// Delete removes a profile and its samples. If it was the active profile the
// setting is cleared.
func (r *ProfileRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := expectAffected(result); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM settings WHERE key = ? AND value = ?`, SettingActiveProfile, id); err != nil {
		return err
	}

	return tx.Commit()
}

func expectAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
