package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/undercontrol/gateway/internal/router"
)

// slowRepo delays each insert so drain behaviour is observable.
type slowRepo struct {
	mu      sync.Mutex
	records []*Record
	delay   time.Duration
}

func (r *slowRepo) Create(_ context.Context, rec *Record) error {
	time.Sleep(r.delay)
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	return nil
}

func (r *slowRepo) List(context.Context, Filter) (*ListResult, error) {
	return &ListResult{}, nil
}

func (r *slowRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func TestObserver_CloseDrainsPendingWrites(t *testing.T) {
	repo := &slowRepo{delay: 20 * time.Millisecond}
	obs := NewObserver(repo, nil)

	const commands = 5
	for i := 0; i < commands; i++ {
		obs.ObserveCommand(context.Background(), router.Command{
			EntryID:   "desk-lamp",
			Operation: "set_power",
			Params:    map[string]any{"n": i},
		}, "mocklight", "success", 3*time.Millisecond)
	}

	if err := obs.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Every insert spawned before Close must have landed by the time it
	// returns; the database can only be closed safely after this point.
	if got := repo.count(); got != commands {
		t.Errorf("records after Close() = %d, want %d", got, commands)
	}
}
