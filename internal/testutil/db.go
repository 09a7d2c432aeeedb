// Package testutil holds shared test helpers: a per-test Mongo database and
// request builders for handlers that read the signed-in user.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/pilitosync/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultTestDBURI is used when PILITOSYNC_TEST_MONGO_URI is unset.
	DefaultTestDBURI = "mongodb://localhost:27017"
	// TestDBName prefixes every per-test database.
	TestDBName = "pilitosync_test"

	// envTestDBURI overrides the test server address.
	envTestDBURI = "PILITOSYNC_TEST_MONGO_URI"
)

// Setup prepares a fresh test database, typically by creating the indexes
// a store owns.
type Setup func(ctx context.Context, db *mongo.Database) error

var (
	clientOnce sync.Once
	client     *mongo.Client
	clientErr  error
)

// TestDBURI returns the Mongo address tests connect to.
func TestDBURI() string {
	if uri := os.Getenv(envTestDBURI); uri != "" {
		return uri
	}
	return DefaultTestDBURI
}

// getClient connects once per test binary. Server selection is kept short
// so a missing server turns into a quick skip.
func getClient() (*mongo.Client, error) {
	clientOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		opts := options.Client().
			ApplyURI(TestDBURI()).
			SetMaxPoolSize(50).
			SetConnectTimeout(3 * time.Second).
			SetServerSelectionTimeout(3 * time.Second)

		client, clientErr = mongo.Connect(ctx, opts)
		if clientErr != nil {
			return
		}
		if clientErr = client.Ping(ctx, nil); clientErr != nil {
			_ = client.Disconnect(context.Background())
			client = nil
		}
	})
	return client, clientErr
}

// SetupTestDB returns an empty database named after the test, with the
// users and options indexes in place and each setup applied in order.
// The test is skipped when no Mongo server is reachable. The database is
// dropped on cleanup.
func SetupTestDB(t *testing.T, setups ...Setup) *mongo.Database {
	t.Helper()

	c, err := getClient()
	if err != nil {
		t.Skipf("mongo unavailable at %s: %v", TestDBURI(), err)
	}

	db := c.Database(fmt.Sprintf("%s_%s", TestDBName, sanitizeTestName(t.Name())))

	ctx, cancel := TestContext()
	defer cancel()

	if err := db.Drop(ctx); err != nil {
		t.Fatalf("drop test database: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	for i, setup := range setups {
		if err := setup(ctx, db); err != nil {
			t.Fatalf("test db setup %d: %v", i, err)
		}
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("drop test database on cleanup: %v", err)
		}
	})

	return db
}

// sanitizeTestName maps a test name onto characters Mongo accepts in a
// database name and trims it so the full name stays under 63 bytes.
func sanitizeTestName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	// len("pilitosync_test_") == 16
	const maxLen = 63 - 16
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return string(out)
}

// TestContext returns a context bounded for test database calls.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
