// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and backend dependencies for this WAFFLE app.
//
// ConnectDB creates it and the later hooks (EnsureSchema, Startup,
// BuildHandler, Shutdown) receive it. Shutdown closes what it holds.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
}
