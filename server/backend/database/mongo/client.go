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

// Package mongo implements database interfaces using MongoDB.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/yorkie-team/statesync/api/types"
	"github.com/yorkie-team/statesync/server/backend/database"
	"github.com/yorkie-team/statesync/server/logging"
)

// currentID is the _id of the only snapshot document.
const currentID = "current"

// Client is a client that connects to Mongo DB and reads or saves snapshots.
type Client struct {
	config *Config
	client *mongo.Client
}

// snapshotDoc is the persisted shape of a snapshot. Record arrays are kept
// as JSON text so that arbitrary client-defined records round-trip exactly.
type snapshotDoc struct {
	ID       string `bson:"_id"`
	Clients  string `bson:"clients"`
	Bookings string `bson:"bookings"`
	Sig      string `bson:"sig"`
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	client, err := mongo.Connect(
		ctx,
		options.Client().ApplyURI(conf.ConnectionURI),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancelPing()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		if errDisconnect := client.Disconnect(context.Background()); errDisconnect != nil {
			logging.DefaultLogger().Warnf("disconnect mongo after failed ping: %v", errDisconnect)
		}
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logging.DefaultLogger().Infof(
		"MongoDB connected, URI: %s, DB: %s, Collection: %s",
		conf.ConnectionURI,
		conf.Database,
		conf.Collection,
	)

	return &Client{
		config: conf,
		client: client,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("close mongo client: %w", err)
	}

	return nil
}

func (c *Client) collection() *mongo.Collection {
	return c.client.Database(c.config.Database).Collection(c.config.Collection)
}

// FindSnapshot returns the stored snapshot.
func (c *Client) FindSnapshot(ctx context.Context) (*database.Snapshot, error) {
	result := c.collection().FindOne(ctx, bson.M{"_id": currentID})
	if errors.Is(result.Err(), mongo.ErrNoDocuments) {
		return nil, database.ErrSnapshotNotFound
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("find snapshot: %w", result.Err())
	}

	doc := snapshotDoc{}
	if err := result.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	snapshot := &database.Snapshot{
		Sig: types.Signature(doc.Sig),
	}
	if err := json.Unmarshal([]byte(doc.Clients), &snapshot.Clients); err != nil {
		return nil, fmt.Errorf("decode clients: %w", err)
	}
	if err := json.Unmarshal([]byte(doc.Bookings), &snapshot.Bookings); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}

	return snapshot, nil
}

// StoreSnapshot replaces the stored snapshot in a single document write.
func (c *Client) StoreSnapshot(ctx context.Context, snapshot *database.Snapshot) error {
	clients, err := marshalRecords(snapshot.Clients)
	if err != nil {
		return fmt.Errorf("encode clients: %w", err)
	}
	bookings, err := marshalRecords(snapshot.Bookings)
	if err != nil {
		return fmt.Errorf("encode bookings: %w", err)
	}

	if _, err := c.collection().ReplaceOne(
		ctx,
		bson.M{"_id": currentID},
		snapshotDoc{
			ID:       currentID,
			Clients:  clients,
			Bookings: bookings,
			Sig:      snapshot.Sig.String(),
		},
		options.Replace().SetUpsert(true),
	); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	return nil
}

func marshalRecords(records []types.Record) (string, error) {
	if records == nil {
		records = []types.Record{}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
