package store

import (
	"testing"
	"time"

	"github.com/thaybinh/hoso7991/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleBundle() model.DraftBundle {
	return model.DraftBundle{
		Matrix: &model.MatrixData{Rows: []model.MatrixRow{
			{Topic: "Mệnh đề và tập hợp", Content: "Mệnh đề", MCQNB: 3, MCQTH: 2, EssayVD: 1, Percent: 40},
			{Topic: "Bất phương trình", Content: "Miền nghiệm", MCQNB: 2, TFTH: 1, Percent: 60},
		}},
		Spec: &model.SpecData{Items: []model.SpecItem{
			{Topic: "Mệnh đề và tập hợp", Outcome: "Nhận biết mệnh đề", MCQNB: 3},
		}},
	}
}

func TestDraftKey(t *testing.T) {
	tests := []struct {
		name                     string
		subject, grade, semester string
		want                     string
	}{
		{"plain", "Toán học", "10", "Học kì 1", "v3:Toán_học_10_Học_kì_1"},
		{"extra whitespace collapses", "Toán   học ", " 10", "Học\tkì 1", "v3:Toán_học_10_Học_kì_1"},
		{"different semester differs", "Toán học", "10", "Học kì 2", "v3:Toán_học_10_Học_kì_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DraftKey(tt.subject, tt.grade, tt.semester)
			if got != tt.want {
				t.Errorf("DraftKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	key := DraftKey("Toán học", "10", "Học kì 1")

	// No draft yet.
	got, err := s.LoadDraft(key)
	if err != nil {
		t.Fatalf("LoadDraft: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil bundle for missing key")
	}

	b := sampleBundle()
	if err := s.SaveDraft(key, b); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	got, err = s.LoadDraft(key)
	if err != nil {
		t.Fatalf("LoadDraft: %v", err)
	}
	if got == nil {
		t.Fatal("expected saved bundle")
	}
	if got.Exam != nil || got.Answers != nil {
		t.Error("nil artifacts should stay nil through a round trip")
	}
	if len(got.Matrix.Rows) != 2 {
		t.Fatalf("expected 2 matrix rows, got %d", len(got.Matrix.Rows))
	}
	if got.Matrix.Rows[0] != b.Matrix.Rows[0] {
		t.Errorf("row 0 = %+v, want %+v", got.Matrix.Rows[0], b.Matrix.Rows[0])
	}
	if got.Spec.Items[0] != b.Spec.Items[0] {
		t.Errorf("spec item 0 = %+v, want %+v", got.Spec.Items[0], b.Spec.Items[0])
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	key := DraftKey("Toán học", "10", "Học kì 1")

	if err := s.SaveDraft(key, sampleBundle()); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	updated := sampleBundle()
	updated.Matrix.Rows = updated.Matrix.Rows[:1]
	updated.Spec = nil
	if err := s.SaveDraft(key, updated); err != nil {
		t.Fatalf("SaveDraft overwrite: %v", err)
	}

	got, err := s.LoadDraft(key)
	if err != nil {
		t.Fatalf("LoadDraft: %v", err)
	}
	if len(got.Matrix.Rows) != 1 {
		t.Errorf("expected 1 row after overwrite, got %d", len(got.Matrix.Rows))
	}
	if got.Spec != nil {
		t.Error("regenerated draft should have overwritten spec with nil")
	}
}

func TestDraftsIsolatedPerKey(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveDraft(DraftKey("Toán học", "10", "Học kì 1"), sampleBundle()); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	// A different subject, grade, or semester is a different draft.
	for _, key := range []string{
		DraftKey("Ngữ văn", "10", "Học kì 1"),
		DraftKey("Toán học", "11", "Học kì 1"),
		DraftKey("Toán học", "10", "Học kì 2"),
	} {
		got, err := s.LoadDraft(key)
		if err != nil {
			t.Fatalf("LoadDraft(%q): %v", key, err)
		}
		if got != nil {
			t.Errorf("expected no draft under %q", key)
		}
	}
}

func TestListDraftKeys(t *testing.T) {
	s := newTestStore(t)

	keys, err := s.ListDraftKeys()
	if err != nil {
		t.Fatalf("ListDraftKeys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected no keys, got %v", keys)
	}

	k1 := DraftKey("Toán học", "10", "Học kì 1")
	k2 := DraftKey("Ngữ văn", "12", "Học kì 2")
	if err := s.SaveDraft(k1, sampleBundle()); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := s.SaveDraft(k2, sampleBundle()); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	keys, err = s.ListDraftKeys()
	if err != nil {
		t.Fatalf("ListDraftKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	// Newest first.
	if keys[0] != k2 {
		t.Errorf("expected %q first, got %q", k2, keys[0])
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	val, err := s.GetMetadata("missing")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if val != "" {
		t.Errorf("expected empty value, got %q", val)
	}

	if err := s.SetMetadata("k", "v1"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata("k", "v2"); err != nil {
		t.Fatalf("SetMetadata update: %v", err)
	}
	val, _ = s.GetMetadata("k")
	if val != "v2" {
		t.Errorf("expected 'v2', got %q", val)
	}
}

func insertRawDraft(t *testing.T, s *Store, key string) {
	t.Helper()
	matrix, err := marshalNullable(sampleBundle().Matrix)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO drafts (key, matrix, updated_at) VALUES (?, ?, ?)`,
		key, matrix, time.Now(),
	)
	if err != nil {
		t.Fatalf("insertRawDraft: %v", err)
	}
}

func TestLegacyKeyMigration(t *testing.T) {
	s := newTestStore(t)

	insertRawDraft(t, s, "exam_7991_Toán_học_10")
	insertRawDraft(t, s, "exam_7991_final_Ngữ_văn_12")

	// Force a re-run; New already stamped the current version.
	if err := s.SetMetadata("key_schema_version", ""); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.migrateLegacyKeys(); err != nil {
		t.Fatalf("migrateLegacyKeys: %v", err)
	}

	// Both legacy drafts are reachable under the versioned keys with the
	// default semester appended.
	for _, key := range []string{
		DraftKey("Toán học", "10", "Học kì 1"),
		DraftKey("Ngữ văn", "12", "Học kì 1"),
	} {
		got, err := s.LoadDraft(key)
		if err != nil {
			t.Fatalf("LoadDraft(%q): %v", key, err)
		}
		if got == nil || got.Matrix == nil {
			t.Errorf("expected migrated draft under %q", key)
		}
	}

	// Legacy keys are gone.
	for _, key := range []string{"exam_7991_Toán_học_10", "exam_7991_final_Ngữ_văn_12"} {
		got, err := s.LoadDraft(key)
		if err != nil {
			t.Fatalf("LoadDraft(%q): %v", key, err)
		}
		if got != nil {
			t.Errorf("legacy key %q should have been migrated away", key)
		}
	}

	version, _ := s.GetMetadata("key_schema_version")
	if version != keySchemaVersion {
		t.Errorf("key_schema_version = %q, want %q", version, keySchemaVersion)
	}
}

func TestLegacyMigrationNeverClobbersCurrentDraft(t *testing.T) {
	s := newTestStore(t)

	current := model.DraftBundle{
		Matrix: &model.MatrixData{Rows: []model.MatrixRow{{Topic: "current"}}},
	}
	key := DraftKey("Toán học", "10", "Học kì 1")
	if err := s.SaveDraft(key, current); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	insertRawDraft(t, s, "exam_7991_final_Toán_học_10")

	if err := s.SetMetadata("key_schema_version", ""); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.migrateLegacyKeys(); err != nil {
		t.Fatalf("migrateLegacyKeys: %v", err)
	}

	got, err := s.LoadDraft(key)
	if err != nil {
		t.Fatalf("LoadDraft: %v", err)
	}
	if got.Matrix.Rows[0].Topic != "current" {
		t.Errorf("migration overwrote the current draft: %+v", got.Matrix.Rows[0])
	}

	// The shadowed legacy draft is dropped, not left orphaned.
	legacy, err := s.LoadDraft("exam_7991_final_Toán_học_10")
	if err != nil {
		t.Fatalf("LoadDraft legacy: %v", err)
	}
	if legacy != nil {
		t.Error("shadowed legacy draft should have been deleted")
	}
}

func TestMigrationRunsOnce(t *testing.T) {
	s := newTestStore(t)

	// Stamped by New; a legacy-looking key inserted afterwards stays put.
	insertRawDraft(t, s, "exam_7991_Toán_học_10")
	if err := s.migrateLegacyKeys(); err != nil {
		t.Fatalf("migrateLegacyKeys: %v", err)
	}

	got, err := s.LoadDraft("exam_7991_Toán_học_10")
	if err != nil {
		t.Fatalf("LoadDraft: %v", err)
	}
	if got == nil {
		t.Error("migration should not run again once the schema version is stamped")
	}
}
