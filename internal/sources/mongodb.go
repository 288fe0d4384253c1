package sources

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/models"
)

func runMongoDB(ctx context.Context, env *Env, profiles map[string]config.MongoDBProfile) {
	for _, name := range profileNames(profiles) {
		p := profiles[name]
		if err := scanMongoDB(ctx, env, name, p); err != nil {
			env.fail(models.SourceMongoDB, name, err)
		}
	}
}

func scanMongoDB(ctx context.Context, env *Env, profile string, p config.MongoDBProfile) error {
	uri, err := mongoURI(p)
	if err != nil {
		return err
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	env.Defer(func() { client.Disconnect(context.Background()) })

	names, err := client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if !slices.Contains(names, p.Database) {
		return fmt.Errorf("database %s not found on the server", p.Database)
	}

	db := client.Database(p.Database)
	all, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	log := env.Log.WithField("source", models.SourceMongoDB).WithField("profile", profile)
	host := mongoHost(p, uri)
	for _, name := range selectTables(all, p.Collections, func(missing string) {
		log.WithField("collection", missing).Error("Collection not found in the database, skipping")
	}) {
		coll := db.Collection(name)
		if !env.Pool.Submit(ctx, func(ctx context.Context) []models.Finding {
			out, err := scanCollection(ctx, env.Scanner, coll, profile, host, p)
			if err != nil {
				log.WithError(err).WithField("collection", coll.Name()).Error("Collection scan failed")
			}
			return out
		}) {
			break
		}
	}
	return nil
}

// scanCollection matches documents [limit_start, limit_end) of coll.
func scanCollection(ctx context.Context, sc Scanner, coll *mongo.Collection, profile, host string, p config.MongoDBProfile) ([]models.Finding, error) {
	opts := options.Find().SetSkip(int64(p.LimitStart)).SetLimit(int64(p.LimitEnd - p.LimitStart))
	cur, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Finding
	for cur.Next(ctx) {
		var doc map[string]any
		if err := cur.Decode(&doc); err != nil {
			return out, err
		}
		out = append(out, documentFindings(sc, models.SourceMongoDB, profile, doc, func(f *models.Finding, field string) {
			f.Host = host
			f.Database = p.Database
			f.Collection = coll.Name()
			f.Field = field
		})...)
	}
	return out, cur.Err()
}

// mongoURI prefers the configured URI and otherwise builds one from host
// and credentials.
func mongoURI(p config.MongoDBProfile) (string, error) {
	if p.Database == "" {
		return "", fmt.Errorf("database is required")
	}
	if p.URI != "" {
		return p.URI, nil
	}
	if p.Host == "" || p.Username == "" || p.Password == "" {
		return "", fmt.Errorf("uri, or host, username and password are required")
	}
	u := url.URL{
		Scheme: "mongodb",
		User:   url.UserPassword(p.Username, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
	}
	return u.String(), nil
}

func mongoHost(p config.MongoDBProfile, uri string) string {
	if p.Host != "" {
		return p.Host
	}
	if u, err := url.Parse(uri); err == nil {
		return u.Host
	}
	return ""
}
