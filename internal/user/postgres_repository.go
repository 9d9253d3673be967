package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GwennLsk/BackCantineAston/internal/db"
)

const (
	userColumns = `id, name, firstname, email, password, admin, order_keys, solde, created_at, updated_at`

	uniqueViolation = "23505"
)

var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository stores users in a relational table keyed by the
// ObjectID hex string, so ids look the same whichever store is in use.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type userRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Firstname string         `db:"firstname"`
	Email     string         `db:"email"`
	Password  string         `db:"password"`
	Admin     bool           `db:"admin"`
	OrderKeys pq.StringArray `db:"order_keys"`
	Solde     int64          `db:"solde"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (row userRow) toUser() (*User, error) {
	id, err := primitive.ObjectIDFromHex(row.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", row.ID, err)
	}
	keys, err := parseIDs(row.OrderKeys)
	if err != nil {
		return nil, fmt.Errorf("corrupt order keys for user %s: %w", row.ID, err)
	}

	return &User{
		ID:        id,
		Name:      row.Name,
		Firstname: row.Firstname,
		Email:     row.Email,
		Password:  row.Password,
		Admin:     row.Admin,
		OrderKeys: keys,
		Solde:     row.Solde,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func hexKeys(keys []primitive.ObjectID) pq.StringArray {
	out := make(pq.StringArray, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.Hex())
	}
	return out
}

func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	u.normalize()
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		u.ID.Hex(), u.Name, u.Firstname, u.Email, u.Password, u.Admin,
		hexKeys(u.OrderKeys), u.Solde, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindAll(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id ASC`

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]User, 0, len(rows))
	for _, row := range rows {
		u, err := row.toUser()
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.Hex())
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return db.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *PostgresRepository) Update(ctx context.Context, id primitive.ObjectID, upd UserUpdate) (*User, error) {
	var (
		sets []string
		args []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Firstname != nil {
		add("firstname", *upd.Firstname)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Password != nil {
		add("password", *upd.Password)
	}
	if upd.OrderKeys != nil {
		add("order_keys", hexKeys(upd.OrderKeys))
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id.Hex())
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	u, err := r.get(ctx, query, args...)
	if isUniqueViolation(err) {
		return nil, ErrEmailExists
	}
	return u, err
}

func (r *PostgresRepository) Delete(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return r.get(ctx, `DELETE FROM users WHERE id = $1 RETURNING `+userColumns, id.Hex())
}

func (r *PostgresRepository) AddOrderKey(ctx context.Context, id, orderKey primitive.ObjectID) (*User, error) {
	query := `
		UPDATE users
		SET order_keys = CASE WHEN $2 = ANY(order_keys) THEN order_keys ELSE array_append(order_keys, $2) END,
			updated_at = $3
		WHERE id = $1
		RETURNING ` + userColumns

	return r.get(ctx, query, id.Hex(), orderKey.Hex(), time.Now().UTC())
}

func (r *PostgresRepository) AdjustSolde(ctx context.Context, id primitive.ObjectID, delta int64) (*User, error) {
	query := `
		UPDATE users
		SET solde = solde + $2, updated_at = $3
		WHERE id = $1 AND solde + $2 >= 0
		RETURNING ` + userColumns

	u, err := r.get(ctx, query, id.Hex(), delta, time.Now().UTC())
	if !errors.Is(err, ErrUserNotFound) {
		return u, err
	}

	exists, err := db.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id.Hex())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrInsufficientBalance
	}
	return nil, ErrUserNotFound
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) get(ctx context.Context, query string, args ...interface{}) (*User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return row.toUser()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
