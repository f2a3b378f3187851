package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/emiTracker/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test_store.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newProfile(name string) *models.LoanProfile {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.LoanProfile{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      models.LoanTypeHome,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLiteStore_CreateAndGetProfile(t *testing.T) {
	s := newTestStore(t)

	p := newProfile("House")
	p.Type = models.LoanTypeOther
	p.CustomType = "Family"
	if err := s.CreateProfile(p); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	fetched, err := s.GetProfile(p.ID)
	if err != nil {
		t.Fatalf("Failed to get profile: %v", err)
	}
	if fetched.Name != "House" || fetched.Type != models.LoanTypeOther || fetched.CustomType != "Family" {
		t.Errorf("Unexpected profile: %+v", fetched)
	}
	if !fetched.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("Expected CreatedAt %v, got %v", p.CreatedAt, fetched.CreatedAt)
	}

	if _, err := s.GetProfile("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_UpdateProfile(t *testing.T) {
	s := newTestStore(t)
	p := newProfile("Car")
	if err := s.CreateProfile(p); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	p.Name = "New Car"
	p.Type = models.LoanTypeCar
	if err := s.UpdateProfile(p); err != nil {
		t.Fatalf("Failed to update profile: %v", err)
	}
	fetched, _ := s.GetProfile(p.ID)
	if fetched.Name != "New Car" || fetched.Type != models.LoanTypeCar {
		t.Errorf("Unexpected profile after update: %+v", fetched)
	}

	if err := s.UpdateProfile(newProfile("ghost")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_GetAllProfilesKeepsOrder(t *testing.T) {
	s := newTestStore(t)
	names := []string{"first", "second", "third"}
	for _, n := range names {
		if err := s.CreateProfile(newProfile(n)); err != nil {
			t.Fatalf("Failed to create profile: %v", err)
		}
	}

	profiles, err := s.GetAllProfiles()
	if err != nil {
		t.Fatalf("Failed to get profiles: %v", err)
	}
	if len(profiles) != 3 {
		t.Fatalf("Expected 3 profiles, got %d", len(profiles))
	}
	for i, n := range names {
		if profiles[i].Name != n {
			t.Errorf("Expected profile %d to be %s, got %s", i, n, profiles[i].Name)
		}
	}
}

func TestSQLiteStore_State(t *testing.T) {
	s := newTestStore(t)
	p := newProfile("Home")
	if err := s.CreateProfile(p); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	data, err := s.LoadState(p.ID, "parameters")
	if err != nil || data != nil {
		t.Fatalf("Expected no state, got %s (%v)", data, err)
	}

	if err := s.SaveState(p.ID, "parameters", []byte(`{"loan":1}`)); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}
	if err := s.SaveState(p.ID, "parameters", []byte(`{"loan":2}`)); err != nil {
		t.Fatalf("Failed to overwrite state: %v", err)
	}
	data, err = s.LoadState(p.ID, "parameters")
	if err != nil {
		t.Fatalf("Failed to load state: %v", err)
	}
	if string(data) != `{"loan":2}` {
		t.Errorf("Expected overwritten state, got %s", data)
	}

	if err := s.SaveState("missing", "parameters", []byte(`{}`)); err == nil {
		t.Error("Expected foreign key violation for unknown profile")
	}
}

func TestSQLiteStore_DeleteProfilePurgesState(t *testing.T) {
	s := newTestStore(t)
	p := newProfile("Gold")
	if err := s.CreateProfile(p); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}
	_ = s.SaveState(p.ID, "table", []byte(`[]`))
	_ = s.SetCurrentProfileID(p.ID)

	if err := s.DeleteProfile(p.ID); err != nil {
		t.Fatalf("Failed to delete profile: %v", err)
	}
	if _, err := s.GetProfile(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if data, _ := s.LoadState(p.ID, "table"); data != nil {
		t.Errorf("Expected state to be purged, got %s", data)
	}
	if id, _ := s.GetCurrentProfileID(); id != "" {
		t.Errorf("Expected current profile to be cleared, got %s", id)
	}
	if err := s.DeleteProfile(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSQLiteStore_CurrentProfileID(t *testing.T) {
	s := newTestStore(t)

	id, err := s.GetCurrentProfileID()
	if err != nil || id != "" {
		t.Fatalf("Expected empty current id, got %q (%v)", id, err)
	}
	if err := s.SetCurrentProfileID("abc"); err != nil {
		t.Fatalf("Failed to set current id: %v", err)
	}
	if err := s.SetCurrentProfileID("def"); err != nil {
		t.Fatalf("Failed to replace current id: %v", err)
	}
	if id, _ := s.GetCurrentProfileID(); id != "def" {
		t.Errorf("Expected def, got %s", id)
	}
	if err := s.SetCurrentProfileID(""); err != nil {
		t.Fatalf("Failed to clear current id: %v", err)
	}
	if id, _ := s.GetCurrentProfileID(); id != "" {
		t.Errorf("Expected cleared id, got %s", id)
	}
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	p := newProfile("Persisted")
	if err := s.CreateProfile(p); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}
	s.Close()

	// schema migrations must be idempotent
	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s.Close()
	if _, err := s.GetProfile(p.ID); err != nil {
		t.Errorf("Expected profile to survive reopen: %v", err)
	}
}
