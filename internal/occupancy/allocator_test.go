package occupancy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wardline/hospital-ops/internal/db"
	"github.com/wardline/hospital-ops/internal/hospital"
)

// ---------- fakes ----------

type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *memLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

type memRoomRepo struct {
	mu     sync.Mutex
	rooms  map[uuid.UUID]Room
	events []hospital.EventLog

	// forceConflicts makes the next N UpdateRoom calls fail with a version
	// conflict regardless of the supplied version.
	forceConflicts int
}

func newMemRoomRepo() *memRoomRepo {
	return &memRoomRepo{rooms: make(map[uuid.UUID]Room)}
}

func copyRoom(r Room) Room {
	out := r
	out.Beds = make([]Bed, len(r.Beds))
	copy(out.Beds, r.Beds)
	return out
}

func (r *memRoomRepo) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	out := copyRoom(room)
	return &out, nil
}

func (r *memRoomRepo) UpdateRoom(ctx context.Context, room *Room, expectedVersion int64) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.forceConflicts > 0 {
		r.forceConflicts--
		return nil, db.ErrVersionConflict
	}

	stored, ok := r.rooms[room.ID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if stored.Version != expectedVersion {
		return nil, db.ErrVersionConflict
	}

	next := copyRoom(*room)
	next.Version = expectedVersion + 1
	r.rooms[room.ID] = next

	out := copyRoom(next)
	return &out, nil
}

func (r *memRoomRepo) InsertEvent(ctx context.Context, ev hospital.EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// ---------- setup ----------

// seedRoom stores a two-bed room "R101" and returns its ID.
func seedRoom(repo *memRoomRepo) uuid.UUID {
	id := uuid.New()
	repo.rooms[id] = Room{
		ID:       id,
		Number:   "R101",
		Type:     "general",
		Floor:    1,
		BedCount: 2,
		Beds: []Bed{
			{Number: "R101-1"},
			{Number: "R101-2"},
		},
		AvailableBeds: 2,
		Version:       1,
	}
	return id
}

var testClock = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newAllocator(repo *memRoomRepo) *BedAllocator {
	a := NewBedAllocator(repo, &memLocker{})
	a.now = func() time.Time { return testClock }
	return a
}

// ---------- tests ----------

func TestAssignRelease_CounterStaysConsistent(t *testing.T) {
	repo := newMemRoomRepo()
	roomID := seedRoom(repo)
	alloc := newAllocator(repo)
	ctx := context.Background()
	patient := uuid.New()

	room, err := alloc.Assign(ctx, roomID, "R101-1", patient)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if room.AvailableBeds != 1 {
		t.Errorf("after assign: available = %d, want 1", room.AvailableBeds)
	}

	bed := room.FindBed("R101-1")
	if bed == nil || !bed.Occupied || bed.PatientID == nil || *bed.PatientID != patient {
		t.Fatalf("bed not marked occupied by patient: %+v", bed)
	}
	if bed.AdmittedAt == nil {
		t.Error("AdmittedAt should be stamped on assign")
	}

	// Assigning the occupied bed again fails and changes nothing.
	if _, err := alloc.Assign(ctx, roomID, "R101-1", uuid.New()); !errors.Is(err, ErrBedOccupied) {
		t.Errorf("second assign: want ErrBedOccupied, got %v", err)
	}
	room, err = repo.GetRoomByID(ctx, roomID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if room.AvailableBeds != 1 {
		t.Errorf("failed assign must not move the counter: got %d, want 1", room.AvailableBeds)
	}

	room, err = alloc.Release(ctx, roomID, "R101-1", patient)
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if room.AvailableBeds != 2 {
		t.Errorf("after release: available = %d, want 2", room.AvailableBeds)
	}
	bed = room.FindBed("R101-1")
	if bed.Occupied || bed.PatientID != nil || bed.AdmittedAt != nil {
		t.Errorf("released bed not cleared: %+v", bed)
	}
}

func TestAssign_UnknownTargets(t *testing.T) {
	repo := newMemRoomRepo()
	roomID := seedRoom(repo)
	alloc := newAllocator(repo)
	ctx := context.Background()

	if _, err := alloc.Assign(ctx, uuid.New(), "R101-1", uuid.New()); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("unknown room: got %v", err)
	}
	if _, err := alloc.Assign(ctx, roomID, "R101-9", uuid.New()); !errors.Is(err, ErrBedNotFound) {
		t.Errorf("unknown bed: got %v", err)
	}
}

func TestRelease_StateMismatch(t *testing.T) {
	repo := newMemRoomRepo()
	roomID := seedRoom(repo)
	alloc := newAllocator(repo)
	ctx := context.Background()
	patient := uuid.New()

	// Releasing a free bed is a mismatch.
	if _, err := alloc.Release(ctx, roomID, "R101-1", patient); !errors.Is(err, ErrStateMismatch) {
		t.Errorf("release of free bed: want ErrStateMismatch, got %v", err)
	}

	// Releasing a bed held by someone else is a mismatch too.
	if _, err := alloc.Assign(ctx, roomID, "R101-1", patient); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := alloc.Release(ctx, roomID, "R101-1", uuid.New()); !errors.Is(err, ErrStateMismatch) {
		t.Errorf("release by wrong patient: want ErrStateMismatch, got %v", err)
	}

	room, _ := repo.GetRoomByID(ctx, roomID)
	if bed := room.FindBed("R101-1"); !bed.Occupied || *bed.PatientID != patient {
		t.Error("failed release must leave the bed untouched")
	}
}

func TestAssign_RetriesVersionConflict(t *testing.T) {
	repo := newMemRoomRepo()
	roomID := seedRoom(repo)
	alloc := newAllocator(repo)
	ctx := context.Background()

	repo.forceConflicts = writeRetries - 1

	room, err := alloc.Assign(ctx, roomID, "R101-1", uuid.New())
	if err != nil {
		t.Fatalf("assign should retry past %d conflicts: %v", writeRetries-1, err)
	}
	if room.AvailableBeds != 1 {
		t.Errorf("available = %d, want 1", room.AvailableBeds)
	}
}

func TestAssign_GivesUpAfterRetryBudget(t *testing.T) {
	repo := newMemRoomRepo()
	roomID := seedRoom(repo)
	alloc := newAllocator(repo)

	repo.forceConflicts = writeRetries

	if _, err := alloc.Assign(context.Background(), roomID, "R101-1", uuid.New()); !errors.Is(err, db.ErrVersionConflict) {
		t.Errorf("want db.ErrVersionConflict after exhausted retries, got %v", err)
	}
}

// Concurrent assignments of the same bed: exactly one patient gets it.
func TestAssign_ConcurrentSameBed(t *testing.T) {
	repo := newMemRoomRepo()
	roomID := seedRoom(repo)
	alloc := newAllocator(repo)
	ctx := context.Background()

	const attempts = 8
	errs := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := alloc.Assign(ctx, roomID, "R101-1", uuid.New())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes, occupied := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrBedOccupied):
			occupied++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("want exactly 1 success, got %d", successes)
	}
	if occupied != attempts-1 {
		t.Errorf("want %d ErrBedOccupied, got %d", attempts-1, occupied)
	}

	room, _ := repo.GetRoomByID(ctx, roomID)
	if room.AvailableBeds != 1 {
		t.Errorf("available = %d, want 1", room.AvailableBeds)
	}
}

// Filling the room, emptying it, and filling it again keeps the derived
// counter in lockstep with the bed list at every step.
func TestAvailableBeds_AlwaysMatchesBedList(t *testing.T) {
	repo := newMemRoomRepo()
	roomID := seedRoom(repo)
	alloc := newAllocator(repo)
	ctx := context.Background()

	p1, p2 := uuid.New(), uuid.New()

	steps := []struct {
		op      func() (*Room, error)
		wantErr error
	}{
		{func() (*Room, error) { return alloc.Assign(ctx, roomID, "R101-1", p1) }, nil},
		{func() (*Room, error) { return alloc.Assign(ctx, roomID, "R101-2", p2) }, nil},
		{func() (*Room, error) { return alloc.Assign(ctx, roomID, "R101-2", p1) }, ErrBedOccupied},
		{func() (*Room, error) { return alloc.Release(ctx, roomID, "R101-1", p1) }, nil},
		{func() (*Room, error) { return alloc.Release(ctx, roomID, "R101-2", p2) }, nil},
		{func() (*Room, error) { return alloc.Assign(ctx, roomID, "R101-1", p2) }, nil},
	}

	for i, step := range steps {
		if _, err := step.op(); !errors.Is(err, step.wantErr) {
			t.Fatalf("step %d: got %v, want %v", i, err, step.wantErr)
		}

		room, err := repo.GetRoomByID(ctx, roomID)
		if err != nil {
			t.Fatalf("step %d reload: %v", i, err)
		}
		free := 0
		for _, b := range room.Beds {
			if !b.Occupied {
				free++
			}
		}
		if room.AvailableBeds != free {
			t.Fatalf("step %d: counter %d disagrees with bed list %d", i, room.AvailableBeds, free)
		}
	}
}
