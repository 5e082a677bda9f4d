package store

import (
	"database/sql"
	"log/slog"
	"strings"
)

// keySchemaVersion marks the current draft-key convention. Bumping it
// re-runs the legacy upgrade on next open.
const keySchemaVersion = "3"

// Two earlier key conventions predate the versioned scheme. Neither
// carried a semester component.
var legacyKeyPrefixes = []string{"exam_7991_final_", "exam_7991_"}

const defaultSemester = "Học kì 1"

// SetMetadata upserts a key-value pair in the app_metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO app_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM app_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// migrateLegacyKeys upgrades drafts saved under the pre-versioned key
// conventions into the current scheme, once. Old drafts get the default
// semester appended; an existing draft under the new key always wins.
func (s *Store) migrateLegacyKeys() error {
	done, err := s.GetMetadata("key_schema_version")
	if err != nil {
		return err
	}
	if done == keySchemaVersion {
		return nil
	}

	keys, err := s.ListDraftKeys()
	if err != nil {
		return err
	}
	for _, old := range keys {
		rest, ok := stripLegacyPrefix(old)
		if !ok {
			continue
		}
		newKey := "v" + keySchemaVersion + ":" + rest + "_" + normalize(defaultSemester)
		existing, err := s.LoadDraft(newKey)
		if err != nil {
			return err
		}
		if existing == nil {
			if _, err := s.db.Exec(
				`UPDATE drafts SET key = ? WHERE key = ?`, newKey, old,
			); err != nil {
				return err
			}
			slog.Info("migrated legacy draft", "from", old, "to", newKey)
			continue
		}
		// A current-scheme draft already exists; drop the legacy one.
		if err := s.DeleteDraft(old); err != nil {
			return err
		}
		slog.Info("discarded legacy draft shadowed by current draft", "key", old)
	}

	return s.SetMetadata("key_schema_version", keySchemaVersion)
}

// stripLegacyPrefix returns the subject_grade remainder of a legacy key.
// The longer "final" prefix is tried first so its keys are not misread
// as the older convention with a subject starting with "final_".
func stripLegacyPrefix(key string) (string, bool) {
	for _, p := range legacyKeyPrefixes {
		if strings.HasPrefix(key, p) {
			return strings.TrimPrefix(key, p), true
		}
	}
	return "", false
}
