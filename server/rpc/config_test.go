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

package rpc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/statesync/server/rpc"
)

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		validConf := rpc.Config{
			Port:            5000,
			MaxRequestBytes: 5 * 1024 * 1024,
			AllowedOrigin:   "*",
			StreamKeepAlive: "15s",
		}
		assert.NoError(t, validConf.Validate())

		conf1 := validConf
		conf1.Port = -1
		assert.ErrorIs(t, conf1.Validate(), rpc.ErrInvalidRPCPort)

		conf2 := validConf
		conf2.MaxRequestBytes = 0
		assert.ErrorIs(t, conf2.Validate(), rpc.ErrInvalidMaxRequestBytes)

		conf3 := validConf
		conf3.StreamKeepAlive = "15"
		assert.ErrorIs(t, conf3.Validate(), rpc.ErrInvalidStreamKeepAlive)

		conf4 := validConf
		conf4.StreamKeepAlive = "-1s"
		assert.ErrorIs(t, conf4.Validate(), rpc.ErrInvalidStreamKeepAlive)

		conf5 := validConf
		conf5.StreamKeepAlive = "0s"
		assert.NoError(t, conf5.Validate())
		assert.Equal(t, int64(0), int64(conf5.ParseStreamKeepAlive()))
	})
}
