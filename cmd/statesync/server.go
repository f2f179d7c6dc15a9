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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorkie-team/statesync/server"
	"github.com/yorkie-team/statesync/server/backend"
	"github.com/yorkie-team/statesync/server/backend/database/mongo"
	"github.com/yorkie-team/statesync/server/logging"
)

var (
	gracefulTimeout = 10 * time.Second
)

var (
	flagConfPath string
	flagLogLevel string

	streamKeepAlive time.Duration
	publishTimeout  time.Duration

	mongoConnectionURI     string
	mongoConnectionTimeout time.Duration
	mongoDatabase          string
	mongoCollection        string
	mongoPingTimeout       time.Duration

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start StateSync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.RPC.StreamKeepAlive = streamKeepAlive.String()
			conf.Backend.PublishTimeout = publishTimeout.String()

			if !cmd.Flags().Changed("rpc-port") && viper.IsSet("port") {
				conf.RPC.Port = viper.GetInt("port")
			}
			if !cmd.Flags().Changed("backend-environment") && viper.IsSet("environment") {
				conf.Backend.Environment = viper.GetString("environment")
			}

			if mongoConnectionURI != "" {
				conf.Mongo = &mongo.Config{
					ConnectionURI:     mongoConnectionURI,
					ConnectionTimeout: mongoConnectionTimeout.String(),
					Database:          mongoDatabase,
					Collection:        mongoCollection,
					PingTimeout:       mongoPingTimeout.String(),
				}
				if !cmd.Flags().Changed("backend-database") {
					conf.Backend.Database = backend.DatabaseMongo
				}
			}

			// If config file is given, command-line arguments will be overwritten.
			if flagConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}

			if err := logging.SetLogLevel(flagLogLevel); err != nil {
				return err
			}

			s, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := s.Start(); err != nil {
				return err
			}

			if code := handleSignal(s); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}
}

func handleSignal(r *server.StateSync) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-r.ShutdownCh():
		// statesync is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}

	gracefulCh := make(chan struct{})
	go func() {
		if err := r.Shutdown(graceful); err != nil {
			logging.DefaultLogger().Error(err)
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func init() {
	_ = viper.BindEnv("port", "STATESYNC_PORT", "PORT")
	_ = viper.BindEnv("environment", "STATESYNC_ENVIRONMENT")

	cmd := newServerCmd()
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().IntVar(
		&conf.RPC.Port,
		"rpc-port",
		server.DefaultRPCPort,
		"RPC port",
	)
	cmd.Flags().Uint64Var(
		&conf.RPC.MaxRequestBytes,
		"rpc-max-request-bytes",
		server.DefaultMaxRequestBytes,
		"Maximum size in bytes of a state write the server will accept.",
	)
	cmd.Flags().StringVar(
		&conf.RPC.AllowedOrigin,
		"rpc-allowed-origin",
		server.DefaultAllowedOrigin,
		"Value of Access-Control-Allow-Origin on API responses.",
	)
	cmd.Flags().DurationVar(
		&streamKeepAlive,
		"rpc-stream-keep-alive",
		server.DefaultStreamKeepAlive,
		"Interval of keep-alive comments on state streams. 0 disables them.",
	)
	cmd.Flags().BoolVar(
		&conf.RPC.EnableH2C,
		"rpc-enable-h2c",
		false,
		"Serve cleartext HTTP/2 next to HTTP/1.1.",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"enable-pprof",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().StringVar(
		&conf.Backend.Environment,
		"backend-environment",
		server.DefaultEnvironment,
		"Name of the deployment environment reported by the health endpoint.",
	)
	cmd.Flags().StringVar(
		&conf.Backend.DataDir,
		"backend-data-dir",
		server.DefaultDataDir,
		"Directory of the state file.",
	)
	cmd.Flags().StringVar(
		&conf.Backend.StateFile,
		"backend-state-file",
		server.DefaultStateFile,
		"Name of the state file in the data directory.",
	)
	cmd.Flags().StringVar(
		&conf.Backend.Database,
		"backend-database",
		server.DefaultDatabase,
		"Durable medium of the state: file, memory or mongo.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.SubscriberLimit,
		"backend-subscriber-limit",
		0,
		"Maximum number of concurrent listeners. 0 means unlimited.",
	)
	cmd.Flags().DurationVar(
		&publishTimeout,
		"backend-publish-timeout",
		server.DefaultPublishTimeout,
		"How long a broadcast waits for a slow listener before dropping it.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.SubscriptionBufferSize,
		"backend-subscription-buffer-size",
		server.DefaultSubscriptionBufferSize,
		"Number of documents buffered per listener.",
	)
	cmd.Flags().StringVar(
		&mongoConnectionURI,
		"mongo-connection-uri",
		"",
		"MongoDB's connection URI",
	)
	cmd.Flags().DurationVar(
		&mongoConnectionTimeout,
		"mongo-connection-timeout",
		server.DefaultMongoConnectionTimeout,
		"Mongo DB's connection timeout",
	)
	cmd.Flags().StringVar(
		&mongoDatabase,
		"mongo-database",
		server.DefaultMongoDatabase,
		"StateSync's database name in MongoDB",
	)
	cmd.Flags().StringVar(
		&mongoCollection,
		"mongo-collection",
		server.DefaultMongoCollection,
		"Collection that holds the state document in MongoDB",
	)
	cmd.Flags().DurationVar(
		&mongoPingTimeout,
		"mongo-ping-timeout",
		server.DefaultMongoPingTimeout,
		"Mongo DB's ping timeout",
	)

	rootCmd.AddCommand(cmd)
}
