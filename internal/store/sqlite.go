// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Durable backend with foreign-key enforcement and automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
//
// Referential integrity is enforced by the engine: inserting a farm, cow, or
// act that references a missing row fails with ErrForeignKey, as does deleting
// a farmer or farm that still has dependents. This is stricter than the
// in-memory backend, which performs no referential checks at all.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists (":memory:" needs none)
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single pooled connection keeps the pragmas below in effect for every
	// statement and keeps ":memory:" databases from silently forking.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
// Column names follow the legacy French schema the data originated from.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS farmers (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			nom_complet TEXT NOT NULL,
			adresse     TEXT NOT NULL,
			telephone   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS farms (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			proprietaire_id INTEGER NOT NULL REFERENCES farmers(id),
			adresse         TEXT NOT NULL,
			zone            TEXT NOT NULL,
			nombre_vaches   INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_farms_proprietaire ON farms(proprietaire_id);

		CREATE TABLE IF NOT EXISTS cows (
			num_national        TEXT PRIMARY KEY,
			proprietaire_id     INTEGER NOT NULL REFERENCES farmers(id),
			ferme_id            INTEGER NOT NULL REFERENCES farms(id),
			race                TEXT NOT NULL,
			date_naissance      TEXT NOT NULL,
			date_dernier_velage TEXT,
			pere                TEXT,
			mere                TEXT,
			origine             TEXT,
			race_taureau        TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_cows_proprietaire ON cows(proprietaire_id);
		CREATE INDEX IF NOT EXISTS idx_cows_ferme ON cows(ferme_id);

		CREATE TABLE IF NOT EXISTS acts (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			date_insemination TEXT NOT NULL,
			num_national      TEXT NOT NULL REFERENCES cows(num_national)
		);

		CREATE INDEX IF NOT EXISTS idx_acts_num_national ON acts(num_national);

		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isUniqueViolation checks if the error is a SQLite UNIQUE constraint violation
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation checks if the error is a SQLite FOREIGN KEY constraint violation
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// engineErr tags an engine-level failure so callers can match ErrUnavailable.
// Constraint violations never reach here; they map to their own error kinds
// at the call site.
func engineErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// nullIfEmpty maps the entity convention (empty string = unset) onto SQL NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// User methods

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	query := `SELECT id, username, password FROM users WHERE id = ?`

	var u User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Username, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("querying user", err)
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT id, username, password FROM users WHERE username = ?`

	var u User
	err := s.db.QueryRowContext(ctx, query, username).Scan(&u.ID, &u.Username, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("querying user by username", err)
	}
	return &u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) (*User, error) {
	query := `INSERT INTO users (username, password) VALUES (?, ?) RETURNING id`

	created := *user
	err := s.db.QueryRowContext(ctx, query, user.Username, user.Password).Scan(&created.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, engineErr("inserting user", err)
	}

	s.logger.Info("created user", "id", created.ID, "username", created.Username)
	return &created, nil
}

// Farmer methods

const farmerColumns = "id, nom_complet, adresse, telephone"

func scanFarmer(row interface{ Scan(...any) error }) (*Farmer, error) {
	var f Farmer
	if err := row.Scan(&f.ID, &f.FullName, &f.Address, &f.Phone); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *SQLiteStore) ListFarmers(ctx context.Context) ([]*Farmer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+farmerColumns+` FROM farmers`)
	if err != nil {
		return nil, engineErr("querying farmers", err)
	}
	defer rows.Close()

	farmers := make([]*Farmer, 0)
	for rows.Next() {
		f, err := scanFarmer(rows)
		if err != nil {
			return nil, engineErr("scanning farmer", err)
		}
		farmers = append(farmers, f)
	}
	if err := rows.Err(); err != nil {
		return nil, engineErr("iterating farmers", err)
	}
	return farmers, nil
}

func (s *SQLiteStore) GetFarmer(ctx context.Context, id int64) (*Farmer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+farmerColumns+` FROM farmers WHERE id = ?`, id)

	f, err := scanFarmer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("querying farmer", err)
	}
	return f, nil
}

func (s *SQLiteStore) CreateFarmer(ctx context.Context, farmer *Farmer) (*Farmer, error) {
	query := `
		INSERT INTO farmers (nom_complet, adresse, telephone)
		VALUES (?, ?, ?)
		RETURNING id
	`

	created := *farmer
	err := s.db.QueryRowContext(ctx, query, farmer.FullName, farmer.Address, farmer.Phone).Scan(&created.ID)
	if err != nil {
		return nil, engineErr("inserting farmer", err)
	}

	s.logger.Debug("created farmer", "id", created.ID)
	return &created, nil
}

func (s *SQLiteStore) UpdateFarmer(ctx context.Context, id int64, patch FarmerPatch) (*Farmer, error) {
	var sets []string
	var args []any
	if patch.FullName != nil {
		sets = append(sets, "nom_complet = ?")
		args = append(args, *patch.FullName)
	}
	if patch.Address != nil {
		sets = append(sets, "adresse = ?")
		args = append(args, *patch.Address)
	}
	if patch.Phone != nil {
		sets = append(sets, "telephone = ?")
		args = append(args, *patch.Phone)
	}

	// An empty patch is a valid no-op merge: reflect the current row back,
	// still failing with ErrNotFound when the key is absent.
	if len(sets) == 0 {
		return s.GetFarmer(ctx, id)
	}

	query := fmt.Sprintf(`UPDATE farmers SET %s WHERE id = ? RETURNING `+farmerColumns, strings.Join(sets, ", "))
	args = append(args, id)

	f, err := scanFarmer(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("updating farmer", err)
	}
	return f, nil
}

func (s *SQLiteStore) DeleteFarmer(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM farmers WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("deleting farmer %d: %w", id, ErrForeignKey)
		}
		return engineErr("deleting farmer", err)
	}
	return nil
}

// Farm methods

const farmColumns = "id, proprietaire_id, adresse, zone, nombre_vaches"

func scanFarm(row interface{ Scan(...any) error }) (*Farm, error) {
	var f Farm
	if err := row.Scan(&f.ID, &f.OwnerID, &f.Address, &f.Zone, &f.CowCount); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *SQLiteStore) ListFarms(ctx context.Context, filter FarmFilter) ([]*Farm, error) {
	query := `SELECT ` + farmColumns + ` FROM farms`
	var args []any
	if filter.OwnerID != nil {
		query += ` WHERE proprietaire_id = ?`
		args = append(args, *filter.OwnerID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engineErr("querying farms", err)
	}
	defer rows.Close()

	farms := make([]*Farm, 0)
	for rows.Next() {
		f, err := scanFarm(rows)
		if err != nil {
			return nil, engineErr("scanning farm", err)
		}
		farms = append(farms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, engineErr("iterating farms", err)
	}
	return farms, nil
}

func (s *SQLiteStore) GetFarm(ctx context.Context, id int64) (*Farm, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+farmColumns+` FROM farms WHERE id = ?`, id)

	f, err := scanFarm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("querying farm", err)
	}
	return f, nil
}

func (s *SQLiteStore) CreateFarm(ctx context.Context, farm *Farm) (*Farm, error) {
	query := `
		INSERT INTO farms (proprietaire_id, adresse, zone, nombre_vaches)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`

	created := *farm
	err := s.db.QueryRowContext(ctx, query, farm.OwnerID, farm.Address, farm.Zone, farm.CowCount).Scan(&created.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("inserting farm: %w", ErrForeignKey)
		}
		return nil, engineErr("inserting farm", err)
	}

	s.logger.Debug("created farm", "id", created.ID, "owner", created.OwnerID)
	return &created, nil
}

func (s *SQLiteStore) UpdateFarm(ctx context.Context, id int64, patch FarmPatch) (*Farm, error) {
	var sets []string
	var args []any
	if patch.OwnerID != nil {
		sets = append(sets, "proprietaire_id = ?")
		args = append(args, *patch.OwnerID)
	}
	if patch.Address != nil {
		sets = append(sets, "adresse = ?")
		args = append(args, *patch.Address)
	}
	if patch.Zone != nil {
		sets = append(sets, "zone = ?")
		args = append(args, *patch.Zone)
	}
	if patch.CowCount != nil {
		sets = append(sets, "nombre_vaches = ?")
		args = append(args, *patch.CowCount)
	}

	if len(sets) == 0 {
		return s.GetFarm(ctx, id)
	}

	query := fmt.Sprintf(`UPDATE farms SET %s WHERE id = ? RETURNING `+farmColumns, strings.Join(sets, ", "))
	args = append(args, id)

	f, err := scanFarm(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("updating farm %d: %w", id, ErrForeignKey)
		}
		return nil, engineErr("updating farm", err)
	}
	return f, nil
}

func (s *SQLiteStore) DeleteFarm(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM farms WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("deleting farm %d: %w", id, ErrForeignKey)
		}
		return engineErr("deleting farm", err)
	}
	return nil
}

// Cow methods

const cowColumns = "num_national, proprietaire_id, ferme_id, race, date_naissance, date_dernier_velage, pere, mere, origine, race_taureau"

func scanCow(row interface{ Scan(...any) error }) (*Cow, error) {
	var c Cow
	var lastCalving, father, mother, origin, bullBreed sql.NullString
	err := row.Scan(
		&c.NationalID,
		&c.OwnerID,
		&c.FarmID,
		&c.Breed,
		&c.BirthDate,
		&lastCalving,
		&father,
		&mother,
		&origin,
		&bullBreed,
	)
	if err != nil {
		return nil, err
	}
	c.LastCalvingDate = lastCalving.String
	c.Father = father.String
	c.Mother = mother.String
	c.Origin = origin.String
	c.BullBreed = bullBreed.String
	return &c, nil
}

func (s *SQLiteStore) ListCows(ctx context.Context, filter CowFilter) ([]*Cow, error) {
	query := `SELECT ` + cowColumns + ` FROM cows`
	var args []any
	if filter.OwnerID != nil {
		query += ` WHERE proprietaire_id = ?`
		args = append(args, *filter.OwnerID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engineErr("querying cows", err)
	}
	defer rows.Close()

	cows := make([]*Cow, 0)
	for rows.Next() {
		c, err := scanCow(rows)
		if err != nil {
			return nil, engineErr("scanning cow", err)
		}
		cows = append(cows, c)
	}
	if err := rows.Err(); err != nil {
		return nil, engineErr("iterating cows", err)
	}
	return cows, nil
}

func (s *SQLiteStore) GetCow(ctx context.Context, nationalID string) (*Cow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cowColumns+` FROM cows WHERE num_national = ?`, nationalID)

	c, err := scanCow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("querying cow", err)
	}
	return c, nil
}

func (s *SQLiteStore) CreateCow(ctx context.Context, cow *Cow) (*Cow, error) {
	query := `
		INSERT INTO cows (num_national, proprietaire_id, ferme_id, race, date_naissance,
			date_dernier_velage, pere, mere, origine, race_taureau)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		cow.NationalID,
		cow.OwnerID,
		cow.FarmID,
		cow.Breed,
		cow.BirthDate,
		nullIfEmpty(cow.LastCalvingDate),
		nullIfEmpty(cow.Father),
		nullIfEmpty(cow.Mother),
		nullIfEmpty(cow.Origin),
		nullIfEmpty(cow.BullBreed),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCow
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("inserting cow: %w", ErrForeignKey)
		}
		return nil, engineErr("inserting cow", err)
	}

	s.logger.Debug("created cow", "national_id", cow.NationalID, "owner", cow.OwnerID)
	created := *cow
	return &created, nil
}

func (s *SQLiteStore) UpdateCow(ctx context.Context, nationalID string, patch CowPatch) (*Cow, error) {
	var sets []string
	var args []any
	if patch.OwnerID != nil {
		sets = append(sets, "proprietaire_id = ?")
		args = append(args, *patch.OwnerID)
	}
	if patch.FarmID != nil {
		sets = append(sets, "ferme_id = ?")
		args = append(args, *patch.FarmID)
	}
	if patch.Breed != nil {
		sets = append(sets, "race = ?")
		args = append(args, *patch.Breed)
	}
	if patch.BirthDate != nil {
		sets = append(sets, "date_naissance = ?")
		args = append(args, *patch.BirthDate)
	}
	if patch.LastCalvingDate != nil {
		sets = append(sets, "date_dernier_velage = ?")
		args = append(args, nullIfEmpty(*patch.LastCalvingDate))
	}
	if patch.Father != nil {
		sets = append(sets, "pere = ?")
		args = append(args, nullIfEmpty(*patch.Father))
	}
	if patch.Mother != nil {
		sets = append(sets, "mere = ?")
		args = append(args, nullIfEmpty(*patch.Mother))
	}
	if patch.Origin != nil {
		sets = append(sets, "origine = ?")
		args = append(args, nullIfEmpty(*patch.Origin))
	}
	if patch.BullBreed != nil {
		sets = append(sets, "race_taureau = ?")
		args = append(args, nullIfEmpty(*patch.BullBreed))
	}

	if len(sets) == 0 {
		return s.GetCow(ctx, nationalID)
	}

	query := fmt.Sprintf(`UPDATE cows SET %s WHERE num_national = ? RETURNING `+cowColumns, strings.Join(sets, ", "))
	args = append(args, nationalID)

	c, err := scanCow(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("updating cow %s: %w", nationalID, ErrForeignKey)
		}
		return nil, engineErr("updating cow", err)
	}
	return c, nil
}

func (s *SQLiteStore) DeleteCow(ctx context.Context, nationalID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cows WHERE num_national = ?`, nationalID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("deleting cow %s: %w", nationalID, ErrForeignKey)
		}
		return engineErr("deleting cow", err)
	}
	return nil
}

// Act methods

const actColumns = "id, date_insemination, num_national"

func scanAct(row interface{ Scan(...any) error }) (*Act, error) {
	var a Act
	if err := row.Scan(&a.ID, &a.InseminationDate, &a.NationalID); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) ListActs(ctx context.Context, filter ActFilter) ([]*Act, error) {
	query := `SELECT ` + actColumns + ` FROM acts`
	var args []any
	if filter.NationalID != nil {
		query += ` WHERE num_national = ?`
		args = append(args, *filter.NationalID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engineErr("querying acts", err)
	}
	defer rows.Close()

	acts := make([]*Act, 0)
	for rows.Next() {
		a, err := scanAct(rows)
		if err != nil {
			return nil, engineErr("scanning act", err)
		}
		acts = append(acts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, engineErr("iterating acts", err)
	}
	return acts, nil
}

func (s *SQLiteStore) GetAct(ctx context.Context, id int64) (*Act, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+actColumns+` FROM acts WHERE id = ?`, id)

	a, err := scanAct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("querying act", err)
	}
	return a, nil
}

func (s *SQLiteStore) CreateAct(ctx context.Context, act *Act) (*Act, error) {
	query := `
		INSERT INTO acts (date_insemination, num_national)
		VALUES (?, ?)
		RETURNING id
	`

	created := *act
	err := s.db.QueryRowContext(ctx, query, act.InseminationDate, act.NationalID).Scan(&created.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("inserting act: %w", ErrForeignKey)
		}
		return nil, engineErr("inserting act", err)
	}

	s.logger.Debug("created act", "id", created.ID, "national_id", created.NationalID)
	return &created, nil
}

func (s *SQLiteStore) DeleteAct(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM acts WHERE id = ?`, id)
	if err != nil {
		return engineErr("deleting act", err)
	}
	return nil
}
