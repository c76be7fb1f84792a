// Package couchbase provides a generic abstraction layer over the Couchbase Go SDK.
// This package simplifies common operations and provides type-safe document
// operations with built-in error handling and context support.
package couchbase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

// Config holds the connection settings for a Couchbase cluster.
type Config struct {
	ConnectionString string        `env:"COUCHBASE_CONNECTION_STRING" envDefault:"couchbase://localhost"`
	Username         string        `env:"COUCHBASE_USERNAME" envDefault:"Administrator"`
	Password         string        `env:"COUCHBASE_PASSWORD" envDefault:"password"`
	BucketName       string        `env:"COUCHBASE_BUCKET_NAME" envDefault:"pubsub"`
	ScopeName        string        `env:"COUCHBASE_SCOPE_NAME" envDefault:"default"`
	ConnectTimeout   time.Duration `env:"COUCHBASE_CONNECT_TIMEOUT" envDefault:"10s"`
	KVTimeout        time.Duration `env:"COUCHBASE_KV_TIMEOUT" envDefault:"5s"`
	QueryTimeout     time.Duration `env:"COUCHBASE_QUERY_TIMEOUT" envDefault:"30s"`
}

// Connect opens the cluster and waits for the configured bucket to be ready.
func Connect(config Config) (*gocb.Cluster, *gocb.Bucket, error) {
	cluster, err := gocb.Connect(config.ConnectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: config.Username,
			Password: config.Password,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout: config.ConnectTimeout,
			KVTimeout:      config.KVTimeout,
			QueryTimeout:   config.QueryTimeout,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	bucket := cluster.Bucket(config.BucketName)

	if err := bucket.WaitUntilReady(config.ConnectTimeout, nil); err != nil {
		return nil, nil, fmt.Errorf("bucket not ready: %w", err)
	}

	return cluster, bucket, nil
}

// Couchbase is a generic wrapper around Couchbase SDK operations.
// It provides type-safe operations for any document type T.
type Couchbase[T any] struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	collection *gocb.Collection
}

// NewCouchbase creates a new generic Couchbase wrapper instance.
// All parameters are required and the function will return an error if any are nil.
func NewCouchbase[T any](cluster *gocb.Cluster, bucket *gocb.Bucket, collection *gocb.Collection) (*Couchbase[T], error) {
	if cluster == nil || bucket == nil || collection == nil {
		return nil, errors.New("invalid Couchbase parameters: cluster, bucket, and collection must not be nil")
	}

	return &Couchbase[T]{
		cluster:    cluster,
		bucket:     bucket,
		collection: collection,
	}, nil
}

// Insert creates a new document in Couchbase with the given key and value.
// Returns an error if the document already exists or if the operation fails.
func (c *Couchbase[T]) Insert(ctx context.Context, key string, value T, insertOptions *gocb.InsertOptions) error {
	if insertOptions == nil {
		insertOptions = new(gocb.InsertOptions)
	}
	insertOptions.Context = ctx

	_, err := c.collection.Insert(key, value, insertOptions)
	if err != nil {
		return fmt.Errorf("failed to insert document with key %s: %w", key, err)
	}

	return nil
}

// Query executes a N1QL query and returns the results as a slice of type T.
// Automatically marshals each row into the specified type.
func (c *Couchbase[T]) Query(ctx context.Context, query string, opts *gocb.QueryOptions) ([]T, error) {
	if opts == nil {
		opts = new(gocb.QueryOptions)
	}
	opts.Context = ctx

	result, err := c.cluster.Query(query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer result.Close()

	var items []T
	for result.Next() {
		var item T
		if err := result.Row(&item); err != nil {
			return nil, fmt.Errorf("failed to parse query row: %w", err)
		}
		items = append(items, item)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read query results: %w", err)
	}

	return items, nil
}

// Close closes the Couchbase cluster connection.
func (c *Couchbase[T]) Close() error {
	return c.cluster.Close(nil)
}
