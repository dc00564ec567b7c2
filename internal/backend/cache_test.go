/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("GCS_REDIS_ADDR")
	if addr == "" {
		t.Skip("GCS_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := NewRedisCache(ctx, addr, os.Getenv("GCS_REDIS_PASSWORD"))
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer func() { _ = c.Close() }()

	key := "test:" + uuid.NewString()
	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("miss expected, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, key, []byte("[]"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok || string(b) != "[]" {
		t.Fatalf("get: %q %v %v", b, ok, err)
	}
}
