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

package cpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefreshKXPAllEmptyRowsEqualsK(t *testing.T) {
	lgK := 6
	k := 1 << lgK
	matrix := make([]uint64, k)
	kxp := refreshKXP(lgK, matrix)
	assert.InDelta(t, float64(k), kxp, 1e-12)
}

func TestRefreshKXPMatchesIncrementalDecrement(t *testing.T) {
	lgK := 6
	k := 1 << lgK
	matrix := make([]uint64, k)

	kxp := float64(k)
	type update struct{ row, col int }
	updates := []update{{0, 0}, {0, 3}, {5, 10}, {5, 10}, {63, 0}, {10, 20}}
	seen := map[update]bool{}
	for _, u := range updates {
		bit := uint64(1) << u.col
		if matrix[u.row]&bit != 0 {
			continue
		}
		matrix[u.row] |= bit
		if !seen[u] {
			kxp -= kxpDecrement(u.col)
			seen[u] = true
		}
	}

	refreshed := refreshKXP(lgK, matrix)
	assert.InDelta(t, kxp, refreshed, 1e-9)
}

func TestRowWeightFullRowApproachesOne(t *testing.T) {
	w := rowWeight(^uint64(0))
	assert.InDelta(t, 1.0, w, 1e-9)
}

func TestRowWeightEmptyRowIsZero(t *testing.T) {
	assert.Equal(t, 0.0, rowWeight(0))
}
