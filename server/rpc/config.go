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

package rpc

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	// ErrInvalidRPCPort occurs when the port in the config is invalid.
	ErrInvalidRPCPort = errors.New("invalid port number for RPC server")
	// ErrInvalidMaxRequestBytes occurs when the request size limit is invalid.
	ErrInvalidMaxRequestBytes = errors.New("invalid max request bytes for RPC server")
	// ErrInvalidStreamKeepAlive occurs when the stream keep-alive interval is invalid.
	ErrInvalidStreamKeepAlive = errors.New("invalid stream keep-alive for RPC server")
)

// Config is the configuration for creating a Server instance.
type Config struct {
	// Port is the port number for the RPC server.
	Port int `yaml:"Port"`

	// MaxRequestBytes is the maximum client request size in bytes the server will accept.
	MaxRequestBytes uint64 `yaml:"MaxRequestBytes"`

	// AllowedOrigin is the value of Access-Control-Allow-Origin.
	AllowedOrigin string `yaml:"AllowedOrigin"`

	// StreamKeepAlive is the interval of keep-alive comments on state
	// streams. "0s" disables them.
	StreamKeepAlive string `yaml:"StreamKeepAlive"`

	// EnableH2C serves cleartext HTTP/2 next to HTTP/1.1.
	EnableH2C bool `yaml:"EnableH2C"`
}

// Validate validates the port number and the limits.
func (c *Config) Validate() error {
	if c.Port < 1 || 65535 < c.Port {
		return fmt.Errorf("must be between 1 and 65535, given %d: %w", c.Port, ErrInvalidRPCPort)
	}

	if c.MaxRequestBytes == 0 {
		return fmt.Errorf("must be positive, given %d: %w", c.MaxRequestBytes, ErrInvalidMaxRequestBytes)
	}

	d, err := time.ParseDuration(c.StreamKeepAlive)
	if err != nil || d < 0 {
		return fmt.Errorf("%s: %w", c.StreamKeepAlive, ErrInvalidStreamKeepAlive)
	}

	return nil
}

// ParseStreamKeepAlive returns the keep-alive interval of state streams.
func (c *Config) ParseStreamKeepAlive() time.Duration {
	result, err := time.ParseDuration(c.StreamKeepAlive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse stream keep-alive: %v\n", err)
		os.Exit(1)
	}

	return result
}
