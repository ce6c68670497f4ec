package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/undercontrol/gateway/internal/infrastructure/database"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewSQLiteRepository(context.Background(), db.DB)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	return repo
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	rec := &Record{
		EntryID:     "lounge-plug",
		AdapterType: "kasa",
		Operation:   "turn_on",
		Outcome:     "success",
		Params:      map[string]any{"state": float64(1)},
		DurationMS:  42,
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.ID == "" {
		t.Error("ID was not generated")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt was not set")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || len(result.Records) != 1 {
		t.Fatalf("List() total = %d, records = %d, want 1 and 1", result.Total, len(result.Records))
	}

	got := result.Records[0]
	if got.EntryID != "lounge-plug" || got.AdapterType != "kasa" || got.Outcome != "success" {
		t.Errorf("record = %+v, does not match what was written", got)
	}
	if got.Params["state"] != float64(1) {
		t.Errorf("Params = %v, want round-tripped params", got.Params)
	}
	if got.DurationMS != 42 {
		t.Errorf("DurationMS = %d, want 42", got.DurationMS)
	}
}

func TestList_Filters(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	seed := []Record{
		{EntryID: "lamp", AdapterType: "mocklight", Operation: "turn_on", Outcome: "success"},
		{EntryID: "lamp", AdapterType: "mocklight", Operation: "turn_off", Outcome: "success"},
		{EntryID: "tv", AdapterType: "lgtv", Operation: "power_off", Outcome: "unreachable"},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{name: "by entry", filter: Filter{EntryID: "lamp"}, want: 2},
		{name: "by operation", filter: Filter{Operation: "power_off"}, want: 1},
		{name: "by outcome", filter: Filter{Outcome: "unreachable"}, want: 1},
		{name: "combined", filter: Filter{EntryID: "lamp", Operation: "turn_on"}, want: 1},
		{name: "no match", filter: Filter{EntryID: "ghost"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.want {
				t.Errorf("Total = %d, want %d", result.Total, tt.want)
			}
		})
	}
}

func TestList_Pagination(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := &Record{
			EntryID:   "lamp",
			Operation: "status",
			Outcome:   "success",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 5 {
		t.Errorf("Total = %d, want 5", result.Total)
	}
	if len(result.Records) != 2 {
		t.Fatalf("page size = %d, want 2", len(result.Records))
	}
	// Most recent first.
	if !result.Records[0].CreatedAt.After(result.Records[1].CreatedAt) {
		t.Error("records are not ordered most recent first")
	}

	rest, err := repo.List(ctx, Filter{Limit: 10, Offset: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rest.Records) != 3 {
		t.Errorf("remaining records = %d, want 3", len(rest.Records))
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := newRepo(t)

	result, err := repo.List(context.Background(), Filter{Limit: 1000})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 200 {
		t.Errorf("Limit = %d, want clamped 200", result.Limit)
	}

	result, err = repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 50 {
		t.Errorf("Limit = %d, want default 50", result.Limit)
	}
}
