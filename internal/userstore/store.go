// Package userstore persists the users behind the grid's read and submit
// endpoints in SQLite.
package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/usergrid/internal/dataset"
	"github.com/gofrs/flock"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrConflict = errors.New("user conflicts with an existing user")
)

// User is one row of the users table.
type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code,omitempty"`
	Sex       string `json:"sex,omitempty"`
	Active    bool   `json:"active"`
	Age       *int   `json:"age,omitempty"`
	Email     string `json:"email,omitempty"`
	StartDate string `json:"startDate,omitempty"`
}

// Record converts u to a dataset record.
func (u User) Record() dataset.Record {
	rec := dataset.Record{
		"id":     u.ID,
		"name":   u.Name,
		"active": u.Active,
	}
	for k, v := range map[string]string{"code": u.Code, "sex": u.Sex, "email": u.Email, "startDate": u.StartDate} {
		if v != "" {
			rec[k] = v
		}
	}
	if u.Age != nil {
		rec["age"] = *u.Age
	}
	return rec
}

// Query filters and orders List.
type Query struct {
	Offset, Limit int
	Name          string // substring match
	Email         string // substring match
	Age           *int   // exact match
	SortBy        string // a sortable column; empty keeps id order
	Desc          bool
}

var sortable = map[string]string{"age": "age", "id": "id", "name": "name"}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT    NOT NULL UNIQUE,
	code       TEXT    NOT NULL DEFAULT '',
	sex        TEXT    NOT NULL DEFAULT '',
	active     INTEGER NOT NULL DEFAULT 0,
	age        INTEGER,
	email      TEXT    NOT NULL DEFAULT '',
	start_date TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS users_age ON users(age);`

const columns = "id, name, code, sex, active, age, email, start_date"

// Store reads and writes users.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New returns a Store over db.
func New(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the users table and its indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Seed inserts users when the table is empty and returns how many rows
// were written. When lockPath is set, a file lock keeps concurrent
// processes sharing the database from seeding twice.
func (s *Store) Seed(ctx context.Context, lockPath string, users []User) (int, error) {
	if lockPath != "" {
		fl := flock.New(lockPath)
		locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
		if err != nil {
			return 0, fmt.Errorf("seed lock %s: %w", lockPath, err)
		}
		if !locked {
			return 0, fmt.Errorf("seed lock %s: not acquired", lockPath)
		}
		defer fl.Unlock()
	}

	n, err := s.Count(ctx, Query{})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("seed skipped; users present", zap.Int("count", n))
		return 0, nil
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for i := range users {
			if err := insert(ctx, tx, &users[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	s.logger.Info("seeded demo users", zap.Int("count", len(users)))
	return len(users), nil
}

func where(q Query) (string, []any) {
	var conds []string
	var args []any
	if q.Name != "" {
		conds = append(conds, "name LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(q.Name)+"%")
	}
	if q.Email != "" {
		conds = append(conds, "email LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(q.Email)+"%")
	}
	if q.Age != nil {
		conds = append(conds, "age = ?")
		args = append(args, *q.Age)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Count returns how many users match q's filters.
func (s *Store) Count(ctx context.Context, q Query) (int, error) {
	w, args := where(q)
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+w, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// List returns the users matching q, and the total count ignoring paging.
func (s *Store) List(ctx context.Context, q Query) ([]User, int, error) {
	total, err := s.Count(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	w, args := where(q)
	order := " ORDER BY id"
	if col, ok := sortable[q.SortBy]; ok {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		order = fmt.Sprintf(" ORDER BY %s IS NULL, %s %s, id", col, col, dir)
	}
	limit := ""
	if q.Limit > 0 {
		limit = " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, max(q.Offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+columns+" FROM users"+w+order+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// Get returns the user with id.
func (s *Store) Get(ctx context.Context, id int64) (User, error) {
	u, err := scan(s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return u, err
}

// Save inserts u when u.ID is zero and updates it otherwise. Inserted
// users get their new id written back.
func (s *Store) Save(ctx context.Context, u *User) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return save(ctx, tx, u) })
}

// Delete removes the user with id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return remove(ctx, tx, id) })
}

// Change is one submitted record with its status.
type Change struct {
	Status dataset.Status
	User   User
}

// Apply writes a batch of changes in one transaction. Sync entries are
// skipped. It returns the users as stored, deletions excluded.
func (s *Store) Apply(ctx context.Context, changes []Change) ([]User, error) {
	out := make([]User, 0, len(changes))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i, c := range changes {
			u := c.User
			var err error
			switch c.Status {
			case dataset.StatusAdd:
				u.ID = 0
				err = insert(ctx, tx, &u)
			case dataset.StatusUpdate:
				err = update(ctx, tx, &u)
			case dataset.StatusDelete:
				err = remove(ctx, tx, u.ID)
			case dataset.StatusSync:
				continue
			default:
				err = fmt.Errorf("unknown status %q", c.Status)
			}
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			if c.Status != dataset.StatusDelete {
				out = append(out, u)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func save(ctx context.Context, tx *sql.Tx, u *User) error {
	if u.ID == 0 {
		return insert(ctx, tx, u)
	}
	return update(ctx, tx, u)
}

func insert(ctx context.Context, tx *sql.Tx, u *User) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (name, code, sex, active, age, email, start_date) VALUES (?, ?, ?, ?, ?, ?, ?)",
		u.Name, u.Code, u.Sex, u.Active, u.Age, u.Email, u.StartDate)
	if err != nil {
		return mapErr(err, u.Name)
	}
	u.ID, err = res.LastInsertId()
	return err
}

func update(ctx context.Context, tx *sql.Tx, u *User) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET name = ?, code = ?, sex = ?, active = ?, age = ?, email = ?, start_date = ? WHERE id = ?",
		u.Name, u.Code, u.Sex, u.Active, u.Age, u.Email, u.StartDate, u.ID)
	if err != nil {
		return mapErr(err, u.Name)
	}
	return expectOne(res, u.ID)
}

func remove(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return expectOne(res, id)
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func mapErr(err error, name string) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: name %q", ErrConflict, name)
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (User, error) {
	var (
		u   User
		age sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Code, &u.Sex, &u.Active, &age, &u.Email, &u.StartDate); err != nil {
		return User{}, err
	}
	if age.Valid {
		a := int(age.Int64)
		u.Age = &a
	}
	return u, nil
}
