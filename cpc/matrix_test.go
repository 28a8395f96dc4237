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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBitMatrixMatchesNumCouponsSparse(t *testing.T) {
	s, err := NewCpcSketchWithDefault(12)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		require.NoError(t, s.UpdateString(fmt.Sprintf("m-%d", i)))
	}
	matrix := buildBitMatrix(s)
	assert.Equal(t, s.GetNumCoupons(), countBitsSetInMatrix(matrix))
}

func TestBuildBitMatrixMatchesNumCouponsWindowed(t *testing.T) {
	s, err := NewCpcSketchWithDefault(8)
	require.NoError(t, err)
	for i := 0; i < 6000; i++ {
		require.NoError(t, s.UpdateString(fmt.Sprintf("w-%d", i)))
	}
	require.NotNil(t, s.slidingWindow)
	matrix := buildBitMatrix(s)
	assert.Equal(t, s.GetNumCoupons(), countBitsSetInMatrix(matrix))
}

func TestOrMatrixIntoMatrixIsUnion(t *testing.T) {
	dst := []uint64{0b0001, 0b0010}
	src := []uint64{0b0010, 0b0100}
	orMatrixIntoMatrix(dst, src)
	assert.Equal(t, []uint64{0b0011, 0b0110}, dst)
}

func TestOrWindowIntoMatrixShiftsByOffset(t *testing.T) {
	matrix := make([]uint64, 2)
	window := []byte{0x01, 0x80}
	orWindowIntoMatrix(matrix, window, 4)
	assert.Equal(t, uint64(0x01)<<4, matrix[0])
	assert.Equal(t, uint64(0x80)<<4, matrix[1])
}

func TestBuildBitMatrixSeedsEarlyZoneToOnesAndXorsExceptions(t *testing.T) {
	s, err := NewCpcSketchWithDefault(8)
	require.NoError(t, err)
	k := 1 << s.lgK
	s.slidingWindow = make([]byte, k)
	s.windowOffset = 3
	table, err := newPairTable(minLgSizeInts(s.lgK), s.lgK+6)
	require.NoError(t, err)
	s.pairTable = table
	// row 0 has no recorded exception: every early-zone bit below windowOffset
	// must reconstruct as the implicit default of 1.
	// row 1 has a recorded surprising-0 at column 1, so that bit alone must
	// reconstruct as 0 while the rest of its early zone stays 1.
	_, err = s.pairTable.maybeInsert(rowColCode(1, 1))
	require.NoError(t, err)

	matrix := buildBitMatrix(s)
	wantRow0 := uint64(1)<<s.windowOffset - 1
	assert.Equal(t, wantRow0, matrix[0])
	wantRow1 := wantRow0 &^ (uint64(1) << 1)
	assert.Equal(t, wantRow1, matrix[1])
}

func TestXorTableIntoMatrixFlipsExactBits(t *testing.T) {
	matrix := []uint64{0b0111, 0b0111, 0b0111, 0b0111}
	table, err := newPairTable(2, 8)
	require.NoError(t, err)
	_, err = table.maybeInsert((1 << 6) | 1)
	require.NoError(t, err)
	xorTableIntoMatrix(matrix, table)
	assert.Equal(t, uint64(0b0111), matrix[0])
	assert.Equal(t, uint64(0b0101), matrix[1])
}

func TestOrTableIntoMatrixSetsExactBits(t *testing.T) {
	matrix := make([]uint64, 4)
	table, err := newPairTable(2, 8)
	require.NoError(t, err)
	_, err = table.maybeInsert((1 << 6) | 5)
	require.NoError(t, err)
	_, err = table.maybeInsert((3 << 6) | 2)
	require.NoError(t, err)
	orTableIntoMatrix(matrix, table)
	assert.Equal(t, uint64(1)<<5, matrix[1])
	assert.Equal(t, uint64(1)<<2, matrix[3])
}

func TestWalkTableUpdatingSketchReplaysEveryEntry(t *testing.T) {
	source, err := NewCpcSketchWithDefault(11)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, source.UpdateString(fmt.Sprintf("r-%d", i)))
	}
	dest, err := NewCpcSketchWithDefault(11)
	require.NoError(t, err)
	require.NoError(t, walkTableUpdatingSketch(dest, source.pairTable))
	assert.Equal(t, source.GetNumCoupons(), dest.GetNumCoupons())
}
