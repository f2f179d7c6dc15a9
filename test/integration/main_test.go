//go:build integration

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

package integration

import (
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/yorkie-team/statesync/server"
	"github.com/yorkie-team/statesync/test/helper"
)

var (
	defaultServer *server.StateSync
	defaultAddr   string
)

func TestMain(m *testing.M) {
	dataDir, err := os.MkdirTemp("", "statesync-integration")
	if err != nil {
		log.Fatal(err)
	}

	svr, err := server.New(helper.TestConfig(dataDir))
	if err != nil {
		log.Fatal(err)
	}
	if err := svr.Start(); err != nil {
		log.Fatal(err)
	}
	if err := helper.WaitForServerToStart(svr.RPCAddr()); err != nil {
		log.Fatal(err)
	}
	defaultServer = svr
	defaultAddr = fmt.Sprintf("http://%s", svr.RPCAddr())

	code := m.Run()

	if err := defaultServer.Shutdown(true); err != nil {
		log.Println(err)
	}
	if err := os.RemoveAll(dataDir); err != nil {
		log.Println(err)
	}
	os.Exit(code)
}
