package repo

import (
	"testing"
	"time"

	"github.com/reefline/go-catchlog-backend/internal/domain"
)

func TestWindowStore_MissingKeyIsEmpty(t *testing.T) {
	s := NewWindowStore(newTestDB(t))

	stamps, err := s.Load("never-seen")
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if len(stamps) != 0 {
		t.Fatalf("want empty window, got %d stamps", len(stamps))
	}
}

func TestWindowStore_RoundTrip(t *testing.T) {
	s := NewWindowStore(newTestDB(t))
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	in := []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second)}
	if err := s.Save("report-submit:u1", in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := s.Load("report-submit:u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("want %d stamps, got %d", len(in), len(out))
	}
	for i := range in {
		if !out[i].Equal(in[i]) {
			t.Fatalf("stamp %d: want %v, got %v", i, in[i], out[i])
		}
	}

	// Upsert replaces, not appends.
	if err := s.Save("report-submit:u1", in[:1]); err != nil {
		t.Fatalf("second save: %v", err)
	}
	out, _ = s.Load("report-submit:u1")
	if len(out) != 1 {
		t.Fatalf("upsert did not replace: %d stamps", len(out))
	}
}

func TestWindowStore_CorruptRowSurfacesError(t *testing.T) {
	db := newTestDB(t)
	s := NewWindowStore(db)

	row := domain.RateLimitWindow{Key: "k", Timestamps: "{not json", UpdatedAt: time.Now().UTC()}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}

	if _, err := s.Load("k"); err == nil {
		t.Fatal("corrupt row should surface an error for the limiter's fail-open path")
	}
}
