package store

// runMigrations executes all database migrations. Every statement is idempotent.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Overlay tuning profiles, one per eyewear asset
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			asset TEXT NOT NULL DEFAULT '',
			baseline_eye_distance REAL NOT NULL DEFAULT 140 CHECK(baseline_eye_distance > 0),
			scale_x REAL NOT NULL DEFAULT -0.01,
			scale_y REAL NOT NULL DEFAULT -0.01,
			offset_x REAL NOT NULL DEFAULT 0,
			offset_y REAL NOT NULL DEFAULT -0.01,
			depth REAL NOT NULL DEFAULT 1,
			period_ms INTEGER NOT NULL DEFAULT 120,
			samples INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Recorded eye-corner samples used for calibration
		`CREATE TABLE IF NOT EXISTS profile_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_profile_samples_profile_id ON profile_samples(profile_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
