// ABOUTME: In-memory Store implementation backed by per-entity maps
// ABOUTME: Volatile backend for fast iteration and tests; no referential checks

package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore is a volatile Store implementation. All records live in
// process memory and are lost on restart; surrogate identifiers restart
// at 1 with each new instance.
//
// Unlike the SQLite backend, MemoryStore performs no referential checks:
// a farm may reference a missing farmer, and deleting a farmer leaves its
// farms and cows in place. Callers that need integrity guarantees must use
// the SQLite backend.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]*User
	farmers  map[int64]*Farmer
	farms    map[int64]*Farm
	cows     map[string]*Cow // keyed by national ID
	acts     map[int64]*Act
	sessions map[string]*Session

	// Per-family counters mirror SQLite's per-table AUTOINCREMENT sequences.
	nextUserID   int64
	nextFarmerID int64
	nextFarmID   int64
	nextActID    int64

	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore and starts the session sweep
// goroutine. sweepInterval bounds how long an expired session can linger;
// a non-positive value defaults to one hour. Close stops the sweeper.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &MemoryStore{
		users:        make(map[int64]*User),
		farmers:      make(map[int64]*Farmer),
		farms:        make(map[int64]*Farm),
		cows:         make(map[string]*Cow),
		acts:         make(map[int64]*Act),
		sessions:     make(map[string]*Session),
		nextUserID:   1,
		nextFarmerID: 1,
		nextFarmID:   1,
		nextActID:    1,
		logger:       slog.Default().With("component", "store"),
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	go s.sweepSessions(ctx, sweepInterval)
	return s
}

// allocID hands out the next identifier from a family counter.
// Callers must hold mu.
func allocID(counter *int64) int64 {
	id := *counter
	*counter++
	return id
}

// Close stops the session sweeper. The data itself needs no teardown.
func (s *MemoryStore) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// User methods

func (s *MemoryStore) GetUser(ctx context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *u
	return &result, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			result := *u
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username {
			return nil, ErrDuplicateUsername
		}
	}

	created := *user
	created.ID = allocID(&s.nextUserID)
	s.users[created.ID] = &created

	result := created
	return &result, nil
}

// Farmer methods

func (s *MemoryStore) ListFarmers(ctx context.Context) ([]*Farmer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	farmers := make([]*Farmer, 0, len(s.farmers))
	for _, f := range s.farmers {
		result := *f
		farmers = append(farmers, &result)
	}
	return farmers, nil
}

func (s *MemoryStore) GetFarmer(ctx context.Context, id int64) (*Farmer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.farmers[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *f
	return &result, nil
}

func (s *MemoryStore) CreateFarmer(ctx context.Context, farmer *Farmer) (*Farmer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := *farmer
	created.ID = allocID(&s.nextFarmerID)
	s.farmers[created.ID] = &created

	result := created
	return &result, nil
}

func (s *MemoryStore) UpdateFarmer(ctx context.Context, id int64, patch FarmerPatch) (*Farmer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.farmers[id]
	if !ok {
		return nil, ErrNotFound
	}

	// Merge onto a fresh snapshot so concurrent readers never observe a
	// half-applied patch.
	merged := *existing
	if patch.FullName != nil {
		merged.FullName = *patch.FullName
	}
	if patch.Address != nil {
		merged.Address = *patch.Address
	}
	if patch.Phone != nil {
		merged.Phone = *patch.Phone
	}
	s.farmers[id] = &merged

	result := merged
	return &result, nil
}

func (s *MemoryStore) DeleteFarmer(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.farmers, id)
	return nil
}

// Farm methods

func (s *MemoryStore) ListFarms(ctx context.Context, filter FarmFilter) ([]*Farm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	farms := make([]*Farm, 0, len(s.farms))
	for _, f := range s.farms {
		if filter.OwnerID != nil && f.OwnerID != *filter.OwnerID {
			continue
		}
		result := *f
		farms = append(farms, &result)
	}
	return farms, nil
}

func (s *MemoryStore) GetFarm(ctx context.Context, id int64) (*Farm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.farms[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *f
	return &result, nil
}

func (s *MemoryStore) CreateFarm(ctx context.Context, farm *Farm) (*Farm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := *farm
	created.ID = allocID(&s.nextFarmID)
	s.farms[created.ID] = &created

	result := created
	return &result, nil
}

func (s *MemoryStore) UpdateFarm(ctx context.Context, id int64, patch FarmPatch) (*Farm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.farms[id]
	if !ok {
		return nil, ErrNotFound
	}

	merged := *existing
	if patch.OwnerID != nil {
		merged.OwnerID = *patch.OwnerID
	}
	if patch.Address != nil {
		merged.Address = *patch.Address
	}
	if patch.Zone != nil {
		merged.Zone = *patch.Zone
	}
	if patch.CowCount != nil {
		merged.CowCount = *patch.CowCount
	}
	s.farms[id] = &merged

	result := merged
	return &result, nil
}

func (s *MemoryStore) DeleteFarm(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.farms, id)
	return nil
}

// Cow methods

func (s *MemoryStore) ListCows(ctx context.Context, filter CowFilter) ([]*Cow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cows := make([]*Cow, 0, len(s.cows))
	for _, c := range s.cows {
		if filter.OwnerID != nil && c.OwnerID != *filter.OwnerID {
			continue
		}
		result := *c
		cows = append(cows, &result)
	}
	return cows, nil
}

func (s *MemoryStore) GetCow(ctx context.Context, nationalID string) (*Cow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cows[nationalID]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

func (s *MemoryStore) CreateCow(ctx context.Context, cow *Cow) (*Cow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cows[cow.NationalID]; exists {
		return nil, ErrDuplicateCow
	}

	created := *cow
	s.cows[created.NationalID] = &created

	result := created
	return &result, nil
}

func (s *MemoryStore) UpdateCow(ctx context.Context, nationalID string, patch CowPatch) (*Cow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.cows[nationalID]
	if !ok {
		return nil, ErrNotFound
	}

	merged := *existing
	if patch.OwnerID != nil {
		merged.OwnerID = *patch.OwnerID
	}
	if patch.FarmID != nil {
		merged.FarmID = *patch.FarmID
	}
	if patch.Breed != nil {
		merged.Breed = *patch.Breed
	}
	if patch.BirthDate != nil {
		merged.BirthDate = *patch.BirthDate
	}
	if patch.LastCalvingDate != nil {
		merged.LastCalvingDate = *patch.LastCalvingDate
	}
	if patch.Father != nil {
		merged.Father = *patch.Father
	}
	if patch.Mother != nil {
		merged.Mother = *patch.Mother
	}
	if patch.Origin != nil {
		merged.Origin = *patch.Origin
	}
	if patch.BullBreed != nil {
		merged.BullBreed = *patch.BullBreed
	}
	s.cows[nationalID] = &merged

	result := merged
	return &result, nil
}

func (s *MemoryStore) DeleteCow(ctx context.Context, nationalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cows, nationalID)
	return nil
}

// Act methods

func (s *MemoryStore) ListActs(ctx context.Context, filter ActFilter) ([]*Act, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acts := make([]*Act, 0, len(s.acts))
	for _, a := range s.acts {
		if filter.NationalID != nil && a.NationalID != *filter.NationalID {
			continue
		}
		result := *a
		acts = append(acts, &result)
	}
	return acts, nil
}

func (s *MemoryStore) GetAct(ctx context.Context, id int64) (*Act, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.acts[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *a
	return &result, nil
}

func (s *MemoryStore) CreateAct(ctx context.Context, act *Act) (*Act, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := *act
	created.ID = allocID(&s.nextActID)
	s.acts[created.ID] = &created

	result := created
	return &result, nil
}

func (s *MemoryStore) DeleteAct(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.acts, id)
	return nil
}
