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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yorkie-team/statesync/server/backend"
	"github.com/yorkie-team/statesync/server/backend/database/mongo"
	"github.com/yorkie-team/statesync/server/profiling"
	"github.com/yorkie-team/statesync/server/rpc"
)

// Below are the values of the default values of StateSync config.
const (
	DefaultRPCPort         = 5000
	DefaultProfilingPort   = 5001
	DefaultMaxRequestBytes = 5 * 1024 * 1024
	DefaultAllowedOrigin   = "*"
	DefaultStreamKeepAlive = 15 * time.Second

	DefaultEnvironment            = "development"
	DefaultDataDir                = "data"
	DefaultStateFile              = "state.json"
	DefaultDatabase               = backend.DatabaseFile
	DefaultPublishTimeout         = 100 * time.Millisecond
	DefaultSubscriptionBufferSize = 16

	DefaultMongoConnectionURI     = "mongodb://localhost:27017"
	DefaultMongoConnectionTimeout = 5 * time.Second
	DefaultMongoPingTimeout       = 5 * time.Second
	DefaultMongoDatabase          = "statesync"
	DefaultMongoCollection        = "state"
)

// Config is the configuration for creating a StateSync instance.
type Config struct {
	RPC       *rpc.Config       `yaml:"RPC"`
	Profiling *profiling.Config `yaml:"Profiling"`
	Backend   *backend.Config   `yaml:"Backend"`
	Mongo     *mongo.Config     `yaml:"Mongo"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	return newConfig(DefaultRPCPort, DefaultProfilingPort)
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// RPCAddr returns the RPC address.
func (c *Config) RPCAddr() string {
	return fmt.Sprintf("localhost:%d", c.RPC.Port)
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.RPC.Validate(); err != nil {
		return err
	}

	if err := c.Profiling.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if c.Mongo != nil {
		if err := c.Mongo.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.RPC == nil {
		c.RPC = &rpc.Config{}
	}
	if c.RPC.Port == 0 {
		c.RPC.Port = DefaultRPCPort
	}
	if c.RPC.MaxRequestBytes == 0 {
		c.RPC.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if c.RPC.AllowedOrigin == "" {
		c.RPC.AllowedOrigin = DefaultAllowedOrigin
	}
	if c.RPC.StreamKeepAlive == "" {
		c.RPC.StreamKeepAlive = DefaultStreamKeepAlive.String()
	}

	if c.Profiling == nil {
		c.Profiling = &profiling.Config{}
	}
	if c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Backend == nil {
		c.Backend = &backend.Config{}
	}
	if c.Backend.Environment == "" {
		c.Backend.Environment = DefaultEnvironment
	}
	if c.Backend.DataDir == "" {
		c.Backend.DataDir = DefaultDataDir
	}
	if c.Backend.StateFile == "" {
		c.Backend.StateFile = DefaultStateFile
	}
	if c.Backend.Database == "" {
		c.Backend.Database = DefaultDatabase
	}
	if c.Backend.PublishTimeout == "" {
		c.Backend.PublishTimeout = DefaultPublishTimeout.String()
	}
	if c.Backend.SubscriptionBufferSize == 0 {
		c.Backend.SubscriptionBufferSize = DefaultSubscriptionBufferSize
	}

	if c.Mongo != nil {
		if c.Mongo.ConnectionURI == "" {
			c.Mongo.ConnectionURI = DefaultMongoConnectionURI
		}

		if c.Mongo.ConnectionTimeout == "" {
			c.Mongo.ConnectionTimeout = DefaultMongoConnectionTimeout.String()
		}

		if c.Mongo.PingTimeout == "" {
			c.Mongo.PingTimeout = DefaultMongoPingTimeout.String()
		}

		if c.Mongo.Database == "" {
			c.Mongo.Database = DefaultMongoDatabase
		}

		if c.Mongo.Collection == "" {
			c.Mongo.Collection = DefaultMongoCollection
		}
	}
}

func newConfig(port int, profilingPort int) *Config {
	return &Config{
		RPC: &rpc.Config{
			Port:            port,
			MaxRequestBytes: DefaultMaxRequestBytes,
			AllowedOrigin:   DefaultAllowedOrigin,
			StreamKeepAlive: DefaultStreamKeepAlive.String(),
		},
		Profiling: &profiling.Config{
			Port: profilingPort,
		},
		Backend: &backend.Config{
			Environment:            DefaultEnvironment,
			DataDir:                DefaultDataDir,
			StateFile:              DefaultStateFile,
			Database:               DefaultDatabase,
			PublishTimeout:         DefaultPublishTimeout.String(),
			SubscriptionBufferSize: DefaultSubscriptionBufferSize,
		},
	}
}
