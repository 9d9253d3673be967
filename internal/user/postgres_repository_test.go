package user

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var userRowColumns = []string{"id", "name", "firstname", "email", "password", "admin", "order_keys", "solde", "created_at", "updated_at"}

func setupUserMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewPostgresRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func userRows(id primitive.ObjectID, email, orderKeys string, solde int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userRowColumns).
		AddRow(id.Hex(), "LINSKI", "Gwenn", email, "hash", false, orderKeys, solde, now, now)
}

func TestPostgresCreateAndFindUser(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	ctx := context.Background()
	id := primitive.NewObjectID()
	now := time.Now().UTC()

	// Create
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(id.Hex(), "LINSKI", "Gwenn", "gwenn.linski@gmail.com", "hash", false, sqlmock.AnyArg(), int64(0), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(ctx, &User{
		ID: id, Name: "LINSKI", Firstname: "Gwenn", Email: "gwenn.linski@gmail.com",
		Password: "hash", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	// FindByEmail
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE email = $1")).
		WithArgs("gwenn.linski@gmail.com").
		WillReturnRows(userRows(id, "gwenn.linski@gmail.com", "{}", 0))

	u, err := repo.FindByEmail(ctx, "gwenn.linski@gmail.com")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, []primitive.ObjectID{}, u.OrderKeys)

	// EmailExists true
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)")).
		WithArgs("gwenn.linski@gmail.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.EmailExists(ctx, "gwenn.linski@gmail.com")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreate_DuplicateEmail(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	mock.ExpectExec(`INSERT INTO users`).WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &User{ID: primitive.NewObjectID(), Email: "gwenn.linski@gmail.com"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestPostgresFindAll(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	key := primitive.NewObjectID()
	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow(primitive.NewObjectID().Hex(), "LINSKI", "Gwenn", "gwenn.linski@gmail.com", "hash", false, "{}", 0, now, now).
		AddRow(primitive.NewObjectID().Hex(), "LIMA", "Alan", "alan.lima@email.com", "hash", false, "{"+key.Hex()+"}", 250, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users ORDER BY id ASC")).WillReturnRows(rows)

	users, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, []primitive.ObjectID{key}, users[1].OrderKeys)
	assert.Equal(t, int64(250), users[1].Solde)
}

func TestPostgresFindAll_Empty(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users ORDER BY id ASC")).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	users, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestPostgresFindByID_NotFound(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	id := primitive.NewObjectID()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE id = $1")).
		WithArgs(id.Hex()).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := repo.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPostgresFindByID_CorruptID(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("not-an-object-id-at-all!", "LINSKI", "Gwenn", "g@x.com", "hash", false, "{}", 0, now, now))

	_, err := repo.FindByID(context.Background(), primitive.NewObjectID())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt user id")
}

func TestPostgresUpdate(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	id := primitive.NewObjectID()
	firstname := "Agathe"

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET firstname = $1, updated_at = $2 WHERE id = $3 RETURNING "+userColumns)).
		WithArgs("Agathe", sqlmock.AnyArg(), id.Hex()).
		WillReturnRows(userRows(id, "gwenn.linski@gmail.com", "{}", 0))

	u, err := repo.Update(context.Background(), id, UserUpdate{Firstname: &firstname})
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_DuplicateEmail(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	email := "alan.lima@email.com"
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET email = $1")).WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Update(context.Background(), primitive.NewObjectID(), UserUpdate{Email: &email})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestPostgresDelete(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	id := primitive.NewObjectID()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM users WHERE id = $1 RETURNING " + userColumns)).
		WithArgs(id.Hex()).
		WillReturnRows(userRows(id, "alan.lima@email.com", "{}", 0))

	u, err := repo.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM users WHERE id = $1 RETURNING " + userColumns)).
		WithArgs(id.Hex()).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err = repo.Delete(context.Background(), id)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPostgresAddOrderKey(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	id := primitive.NewObjectID()
	key := primitive.NewObjectID()
	mock.ExpectQuery(`UPDATE users\s+SET order_keys = CASE`).
		WithArgs(id.Hex(), key.Hex(), sqlmock.AnyArg()).
		WillReturnRows(userRows(id, "gwenn.linski@gmail.com", "{"+key.Hex()+"}", 0))

	u, err := repo.AddOrderKey(context.Background(), id, key)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{key}, u.OrderKeys)
}

func TestPostgresAdjustSolde(t *testing.T) {
	adjust := `UPDATE users\s+SET solde = solde \+ \$2`
	exists := regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)")
	id := primitive.NewObjectID()

	t.Run("credit", func(t *testing.T) {
		repo, mock, close := setupUserMock(t)
		defer close()

		mock.ExpectQuery(adjust).
			WithArgs(id.Hex(), int64(1500), sqlmock.AnyArg()).
			WillReturnRows(userRows(id, "gwenn.linski@gmail.com", "{}", 1500))

		u, err := repo.AdjustSolde(context.Background(), id, 1500)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), u.Solde)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		repo, mock, close := setupUserMock(t)
		defer close()

		mock.ExpectQuery(adjust).WillReturnRows(sqlmock.NewRows(userRowColumns))
		mock.ExpectQuery(exists).WithArgs(id.Hex()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := repo.AdjustSolde(context.Background(), id, -500)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		repo, mock, close := setupUserMock(t)
		defer close()

		mock.ExpectQuery(adjust).WillReturnRows(sqlmock.NewRows(userRowColumns))
		mock.ExpectQuery(exists).WithArgs(id.Hex()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := repo.AdjustSolde(context.Background(), id, 500)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
