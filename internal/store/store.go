// ABOUTME: Store interface and data types for herdbook persistence
// ABOUTME: Defines the five record types and the Store contract both backends implement

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
// Point lookups treat it as an expected outcome, not a failure.
var ErrNotFound = errors.New("not found")

// ErrDuplicateCow is returned when creating a cow whose national ID already exists.
var ErrDuplicateCow = errors.New("cow with this national ID already exists")

// ErrDuplicateUsername is returned when creating a user with an existing username.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrForeignKey is returned by the SQLite backend when an operation violates a
// declared foreign-key constraint (a reference points at a non-existent row,
// or a delete would strand rows the engine still guards). The in-memory
// backend never produces it.
var ErrForeignKey = errors.New("foreign key constraint violated")

// ErrUnavailable is returned by the SQLite backend when the underlying engine
// cannot be reached or fails outside the constraint taxonomy. It is the only
// error class a caller may reasonably retry. The in-memory backend never
// produces it.
var ErrUnavailable = errors.New("storage backend unavailable")

// User is an account used by the authentication layer. Password is an opaque
// credential blob (the auth layer stores a bcrypt hash here); the store never
// interprets it.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
}

// Farmer is a livestock owner.
type Farmer struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
}

// Farm is a site owned by a farmer. CowCount is a cached counter maintained by
// callers; the store treats it as a dumb field and never recomputes it.
type Farm struct {
	ID       int64  `json:"id"`
	OwnerID  int64  `json:"ownerId"`
	Address  string `json:"address"`
	Zone     string `json:"zone"`
	CowCount int64  `json:"cowCount"`
}

// Cow is keyed by its caller-assigned national identifier, not a surrogate ID.
// The national ID is immutable once the cow is created. Dates are ISO 8601
// day strings (YYYY-MM-DD); optional fields are empty when unset.
type Cow struct {
	NationalID      string `json:"nationalId"`
	OwnerID         int64  `json:"ownerId"`
	FarmID          int64  `json:"farmId"`
	Breed           string `json:"breed"`
	BirthDate       string `json:"birthDate"`
	LastCalvingDate string `json:"lastCalvingDate,omitempty"`
	Father          string `json:"father,omitempty"`
	Mother          string `json:"mother,omitempty"`
	Origin          string `json:"origin,omitempty"`
	BullBreed       string `json:"bullBreed,omitempty"`
}

// Act records a single artificial-insemination act for a cow. Acts are
// immutable once recorded; there is no update operation.
type Act struct {
	ID               int64  `json:"id"`
	InseminationDate string `json:"inseminationDate"`
	NationalID       string `json:"nationalId"`
}

// Session is an authenticated browser session. Sessions live in whichever
// backend holds the entity data; the two are never mixed.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// FarmerPatch is a sparse set of field assignments for a farmer. Nil fields
// keep their prior values.
type FarmerPatch struct {
	FullName *string `json:"fullName"`
	Address  *string `json:"address"`
	Phone    *string `json:"phone"`
}

// FarmPatch is a sparse set of field assignments for a farm.
type FarmPatch struct {
	OwnerID  *int64  `json:"ownerId"`
	Address  *string `json:"address"`
	Zone     *string `json:"zone"`
	CowCount *int64  `json:"cowCount"`
}

// CowPatch is a sparse set of field assignments for a cow. The national ID is
// the primary key and cannot be patched.
type CowPatch struct {
	OwnerID         *int64  `json:"ownerId"`
	FarmID          *int64  `json:"farmId"`
	Breed           *string `json:"breed"`
	BirthDate       *string `json:"birthDate"`
	LastCalvingDate *string `json:"lastCalvingDate"`
	Father          *string `json:"father"`
	Mother          *string `json:"mother"`
	Origin          *string `json:"origin"`
	BullBreed       *string `json:"bullBreed"`
}

// FarmFilter narrows a farm listing. A nil OwnerID lists every farm.
type FarmFilter struct {
	OwnerID *int64
}

// CowFilter narrows a cow listing. A nil OwnerID lists every cow.
type CowFilter struct {
	OwnerID *int64
}

// ActFilter narrows an act listing. A nil NationalID lists every act.
type ActFilter struct {
	NationalID *string
}

// Store is the contract every backend implements. Both backends preserve the
// same semantics: creates assign identity and return the populated record,
// updates merge only the provided fields and fail with ErrNotFound on absent
// keys, deletes are idempotent no-ops on absent keys, and list ordering is
// implementation-defined.
type Store interface {
	// Users
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, user *User) (*User, error)

	// Farmers
	ListFarmers(ctx context.Context) ([]*Farmer, error)
	GetFarmer(ctx context.Context, id int64) (*Farmer, error)
	CreateFarmer(ctx context.Context, farmer *Farmer) (*Farmer, error)
	UpdateFarmer(ctx context.Context, id int64, patch FarmerPatch) (*Farmer, error)
	DeleteFarmer(ctx context.Context, id int64) error

	// Farms
	ListFarms(ctx context.Context, filter FarmFilter) ([]*Farm, error)
	GetFarm(ctx context.Context, id int64) (*Farm, error)
	CreateFarm(ctx context.Context, farm *Farm) (*Farm, error)
	UpdateFarm(ctx context.Context, id int64, patch FarmPatch) (*Farm, error)
	DeleteFarm(ctx context.Context, id int64) error

	// Cows (natural key: national ID supplied by the caller)
	ListCows(ctx context.Context, filter CowFilter) ([]*Cow, error)
	GetCow(ctx context.Context, nationalID string) (*Cow, error)
	CreateCow(ctx context.Context, cow *Cow) (*Cow, error)
	UpdateCow(ctx context.Context, nationalID string, patch CowPatch) (*Cow, error)
	DeleteCow(ctx context.Context, nationalID string) error

	// Acts (immutable: no update)
	ListActs(ctx context.Context, filter ActFilter) ([]*Act, error)
	GetAct(ctx context.Context, id int64) (*Act, error)
	CreateAct(ctx context.Context, act *Act) (*Act, error)
	DeleteAct(ctx context.Context, id int64) error

	// Sessions (for the auth layer)
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
