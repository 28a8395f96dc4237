/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package internal

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/twmb/murmur3"
)

// Hash128 computes the 128-bit MurmurHash3 of bs seeded with seed, returning
// the two 64-bit halves (h1, h2) the way every coupon-collector sketch in
// this pack derives its row and column from raw input bytes.
func Hash128(bs []byte, seed uint64) (uint64, uint64) {
	return murmur3.SeedSum128(seed, seed, bs)
}

// ComputeSeedHash derives the 16-bit digest stored in a sketch's
// serialization preamble so that two sketches built with different update
// seeds are never silently merged or deserialized against one another.
// It deliberately uses a different hash family than Hash128: xxhash here,
// murmur3 for item updates, so a bug in one does not alias with the other.
func ComputeSeedHash(seed int64) (int16, error) {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(seed))
	digest := xxhash.Sum64(scratch[:])
	hash := int16(digest & 0xFFFF)
	if hash == 0 {
		hash = 1
	}
	return hash, nil
}
