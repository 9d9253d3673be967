package integration_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GwennLsk/BackCantineAston/internal/auth"
	"github.com/GwennLsk/BackCantineAston/internal/config"
	"github.com/GwennLsk/BackCantineAston/internal/db"
	"github.com/GwennLsk/BackCantineAston/internal/email"
	"github.com/GwennLsk/BackCantineAston/internal/server"
	"github.com/GwennLsk/BackCantineAston/internal/user"
)

const testSecret = "integration-secret"

type fixture struct {
	repo  user.Repository
	srv   *server.Server
	users []user.User
}

// store builds a clean repository or skips the test.
type store func(t *testing.T) user.Repository

func stores() map[string]store {
	return map[string]store{
		config.StoreMongo:    mongoStore,
		config.StorePostgres: postgresStore,
	}
}

func mongoStore(t *testing.T) user.Repository {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("Skipping MongoDB integration tests: TEST_MONGO_URI is not set")
	}

	ctx := context.Background()
	client, database, err := db.ConnectMongo(ctx, uri, "cantine_test", 5*time.Second)
	if err != nil {
		t.Skipf("Skipping integration tests: cannot connect to test database: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	_, err = database.Collection("users").DeleteMany(ctx, bson.D{})
	require.NoError(t, err, "Failed to clean users collection")

	repo := user.NewMongoRepository(database)
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func postgresStore(t *testing.T) user.Repository {
	dsn := os.Getenv("TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping PostgreSQL integration tests: TEST_DSN is not set")
	}

	database, err := db.ConnectPostgres(dsn)
	if err != nil {
		t.Skipf("Skipping integration tests: cannot connect to test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database, "../migrations"))
	_, err = database.Exec("DELETE FROM users")
	require.NoError(t, err, "Failed to clean table users")

	return user.NewPostgresRepository(database)
}

// setup seeds the three accounts every scenario starts from.
func setup(t *testing.T, open store) *fixture {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	repo := open(t)
	ctx := context.Background()

	seed := []struct {
		name, firstname, email, password string
		admin                            bool
		orderKeys                        []primitive.ObjectID
	}{
		{"LINSKI", "Gwenn", "gwenn.linski@gmail.com", "12345678", false, nil},
		{"LIMA", "Alan", "alan.lima@email.com", "23456789", false, []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()}},
		{"CANTINIER", "Jean-Michel", "jm.cantinier@gmail.com", "87654321", true, nil},
	}

	f := &fixture{repo: repo}
	for _, s := range seed {
		hash, err := auth.HashPassword(s.password)
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Millisecond)
		u := user.User{
			ID:        primitive.NewObjectID(),
			Name:      s.name,
			Firstname: s.firstname,
			Email:     s.email,
			Password:  hash,
			Admin:     s.admin,
			OrderKeys: s.orderKeys,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, repo.Create(ctx, &u))
		f.users = append(f.users, u)
	}

	cfg := &config.Config{
		Environment: "test",
		Port:        8080,
		JWTSecret:   testSecret,
	}
	f.srv = server.New(cfg, repo, email.Nop{})
	return f
}
