/*
 * Copyright 2025 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package backend provides the backend implementation of the state sync
// server. This package is responsible for managing the database and other
// resources required to keep the shared document and its listeners.
package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/yorkie-team/statesync/server/backend/background"
	"github.com/yorkie-team/statesync/server/backend/database"
	"github.com/yorkie-team/statesync/server/backend/database/file"
	memdb "github.com/yorkie-team/statesync/server/backend/database/memory"
	"github.com/yorkie-team/statesync/server/backend/database/mongo"
	"github.com/yorkie-team/statesync/server/backend/pubsub"
	"github.com/yorkie-team/statesync/server/backend/signature"
	"github.com/yorkie-team/statesync/server/backend/store"
	"github.com/yorkie-team/statesync/server/logging"
	"github.com/yorkie-team/statesync/server/profiling/prometheus"
)

// ErrMongoConfigRequired occurs when the mongo database is selected without
// a mongo configuration.
var ErrMongoConfigRequired = errors.New("mongo database requires mongo configuration")

// Backend manages the state sync backend such as Database and Store. It also
// provides the subscriber registry and its publisher.
type Backend struct {
	Config *Config

	// Store owns the current state document.
	Store *store.Store
	// Signatures issues the signatures of state documents.
	Signatures *signature.Generator
	// PubSub is the registry of state listeners.
	PubSub *pubsub.PubSub
	// Publisher broadcasts new documents to PubSub in order.
	Publisher *pubsub.Publisher

	// Background is used to manage background tasks.
	Background *background.Background

	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics
	// DB is the database instance.
	DB database.Database
}

// New creates a new instance of Backend.
func New(
	conf *Config,
	mongoConf *mongo.Config,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	// 01. Create the database instance of the configured kind.
	var db database.Database
	var err error
	dbInfo := conf.Database
	switch conf.Database {
	case DatabaseMongo:
		if mongoConf == nil {
			return nil, ErrMongoConfigRequired
		}
		db, err = mongo.Dial(mongoConf)
		dbInfo = mongoConf.ConnectionURI
	case DatabaseMemory:
		db, err = memdb.New()
	default:
		db, err = file.New(conf.DataDir, conf.StateFile)
		dbInfo = filepath.Join(conf.DataDir, conf.StateFile)
	}
	if err != nil {
		return nil, err
	}

	// 02. Create the document store and the subscriber registry.
	sigs := signature.New()
	ps := pubsub.New(pubsub.Options{
		Limit:          conf.SubscriberLimit,
		BufferSize:     conf.SubscriptionBufferSize,
		PublishTimeout: conf.ParsePublishTimeout(),
	}, metrics)

	logging.DefaultLogger().Infof("backend created: db: %s", dbInfo)

	return &Backend{
		Config: conf,

		Store:      store.New(db, sigs),
		Signatures: sigs,
		PubSub:     ps,
		Publisher:  pubsub.NewPublisher(ps),

		Background: background.New(metrics),

		Metrics: metrics,
		DB:      db,
	}, nil
}

// Start provisions the state document and starts the publisher.
func (b *Backend) Start(ctx context.Context) error {
	doc, err := b.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("provision state: %w", err)
	}

	b.Background.AttachGoroutine(b.Publisher.Run, "pubsub.publish")

	logging.DefaultLogger().Infof("backend started: state: %s", doc)
	return nil
}

// Shutdown closes all resources of this instance.
func (b *Backend) Shutdown() error {
	var errs []error

	// flushes the publisher queue before subscriptions are closed
	b.Background.Close()
	b.PubSub.Close()

	if err := b.DB.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}
