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

package backend

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	// DatabaseFile keeps the state in a JSON file under DataDir.
	DatabaseFile = "file"

	// DatabaseMemory keeps the state in memory only.
	DatabaseMemory = "memory"

	// DatabaseMongo keeps the state in a MongoDB collection.
	DatabaseMongo = "mongo"
)

var (
	// ErrInvalidDatabase occurs when the database kind is unknown.
	ErrInvalidDatabase = errors.New("database must be one of file, memory or mongo")

	// ErrInvalidSubscriberLimit occurs when the subscriber limit is negative.
	ErrInvalidSubscriberLimit = errors.New("subscriber limit must not be negative")

	// ErrInvalidBufferSize occurs when the subscription buffer size is not positive.
	ErrInvalidBufferSize = errors.New("subscription buffer size must be positive")

	// ErrInvalidPublishTimeout occurs when the publish timeout is not positive.
	ErrInvalidPublishTimeout = errors.New("publish timeout must be positive")

	// ErrEmptyStateFile occurs when the state file name is empty.
	ErrEmptyStateFile = errors.New("state file must not be empty")
)

// Config is the configuration for creating a Backend instance.
type Config struct {
	// Environment is the name of the deployment environment reported by the
	// health endpoint. Default is "development".
	Environment string `yaml:"Environment"`

	// DataDir is the directory that holds the state file.
	DataDir string `yaml:"DataDir"`

	// StateFile is the name of the state file in DataDir.
	StateFile string `yaml:"StateFile"`

	// Database is the kind of durable medium: "file", "memory" or "mongo".
	Database string `yaml:"Database"`

	// SubscriberLimit is the maximum number of concurrent subscribers. 0 means
	// unlimited.
	SubscriberLimit int `yaml:"SubscriberLimit"`

	// PublishTimeout is how long a broadcast waits for a slow subscriber
	// before dropping it.
	PublishTimeout string `yaml:"PublishTimeout"`

	// SubscriptionBufferSize is the number of documents buffered per
	// subscriber.
	SubscriptionBufferSize int `yaml:"SubscriptionBufferSize"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	switch c.Database {
	case DatabaseFile, DatabaseMemory, DatabaseMongo:
	default:
		return fmt.Errorf("%s: %w", c.Database, ErrInvalidDatabase)
	}

	if c.Database == DatabaseFile && c.StateFile == "" {
		return ErrEmptyStateFile
	}

	if c.SubscriberLimit < 0 {
		return fmt.Errorf("%d: %w", c.SubscriberLimit, ErrInvalidSubscriberLimit)
	}

	if c.SubscriptionBufferSize <= 0 {
		return fmt.Errorf("%d: %w", c.SubscriptionBufferSize, ErrInvalidBufferSize)
	}

	publishTimeout, err := time.ParseDuration(c.PublishTimeout)
	if err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--backend-publish-timeout" flag: %w`,
			c.PublishTimeout,
			err,
		)
	}
	if publishTimeout <= 0 {
		return fmt.Errorf("%s: %w", c.PublishTimeout, ErrInvalidPublishTimeout)
	}

	return nil
}

// ParsePublishTimeout returns the publish timeout.
func (c *Config) ParsePublishTimeout() time.Duration {
	result, err := time.ParseDuration(c.PublishTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse publish timeout: %v\n", err)
		os.Exit(1)
	}

	return result
}
