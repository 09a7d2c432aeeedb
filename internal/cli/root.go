// Package cli implements pilitoctl, the operator command line for the
// Pilito sync console.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dalemusser/pilitosync/internal/app/features/pilitosettings"
	optionstore "github.com/dalemusser/pilitosync/internal/app/store/options"
	"github.com/dalemusser/pilitosync/internal/app/system/options"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	mongoURI   string
	mongoDB    string
	jsonOutput bool
	timeout    time.Duration
}

// NewRootCmd builds the pilitoctl command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "pilitoctl",
		Short: "pilitoctl manages the Pilito sync console from the shell",
		Long: `pilitoctl verifies Pilito API tokens and reads or writes the console's
settings directly in MongoDB.

MongoDB settings default to PILITOSYNC_MONGO_URI and PILITOSYNC_MONGO_DATABASE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.mongoURI, "mongo-uri", envOr("PILITOSYNC_MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	root.PersistentFlags().StringVar(&g.mongoDB, "mongo-database", envOr("PILITOSYNC_MONGO_DATABASE", "pilitosync"), "MongoDB database name")
	root.PersistentFlags().BoolVar(&g.jsonOutput, "json", false, "Output command results in JSON format")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "Overall command timeout")

	root.AddCommand(newTestConnectionCmd(g))
	root.AddCommand(newOptionsCmd(g))
	root.AddCommand(newAuditCmd(g))
	return root
}

// Execute runs pilitoctl and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// connect opens MongoDB. The caller disconnects the client.
func (g *globals) connect(ctx context.Context) (*mongo.Client, *mongo.Database, error) {
	if err := wafflemongo.ValidateURI(g.mongoURI); err != nil {
		return nil, nil, fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	client, err := wafflemongo.ConnectWithPool(ctx, g.mongoURI, g.mongoDB, wafflemongo.DefaultPoolConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	return client, client.Database(g.mongoDB), nil
}

// withStore runs fn with the MongoDB option store.
func (g *globals) withStore(ctx context.Context, fn func(*optionstore.Store) error) error {
	client, db, err := g.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	return fn(optionstore.New(db))
}

// withOptions runs fn with an option service over MongoDB.
func (g *globals) withOptions(ctx context.Context, fn func(*options.Service) error) error {
	return g.withStore(ctx, func(store *optionstore.Store) error {
		return fn(newOptionService(store))
	})
}

// newOptionService declares the console's options over backend.
func newOptionService(backend options.Backend) *options.Service {
	reg := options.NewRegistry()
	// the registry is fresh, so registration cannot collide
	_ = pilitosettings.RegisterOptions(reg)
	return options.NewService(reg, backend)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
