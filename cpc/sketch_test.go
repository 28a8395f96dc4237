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

func TestNewCpcSketchRejectsBadLgK(t *testing.T) {
	_, err := NewCpcSketchWithDefault(minLgK - 1)
	assert.Error(t, err)
	_, err = NewCpcSketchWithDefault(maxLgK + 1)
	assert.Error(t, err)
}

func TestCpcSketchEmptyEstimateIsZero(t *testing.T) {
	s, err := NewCpcSketchWithDefault(11)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.GetEstimate())
	assert.True(t, s.IsEmpty())
	assert.Equal(t, CpcFlavorEmpty, s.GetFlavor())
	require.NoError(t, Validate(s))
}

func TestCpcSketchDuplicateUpdatesAreIgnored(t *testing.T) {
	s, err := NewCpcSketchWithDefault(11)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, s.UpdateString("same-item"))
	}
	assert.Equal(t, uint64(1), s.GetNumCoupons())
}

func TestCpcSketchEstimateAccuracyAcrossFlavors(t *testing.T) {
	lgK := 11
	s, err := NewCpcSketchWithDefault(lgK)
	require.NoError(t, err)

	n := 20000
	for i := 0; i < n; i++ {
		require.NoError(t, s.UpdateString(fmt.Sprintf("item-%d", i)))
	}
	require.NoError(t, Validate(s))
	assert.NotEqual(t, CpcFlavorSparse, s.GetFlavor())
	assert.NotEqual(t, CpcFlavorEmpty, s.GetFlavor())

	estimate := s.GetEstimate()
	assert.InDelta(t, float64(n), estimate, float64(n)*0.05)

	lb, err := s.GetLowerBound(2)
	require.NoError(t, err)
	ub, err := s.GetUpperBound(2)
	require.NoError(t, err)
	assert.Less(t, lb, estimate)
	assert.Greater(t, ub, estimate)
}

func TestCpcSketchPromotionAtMinLgK(t *testing.T) {
	s, err := NewCpcSketchWithDefault(minLgK)
	require.NoError(t, err)

	sawPromotion := false
	for i := 1; i <= 100; i++ {
		require.NoError(t, s.UpdateString(fmt.Sprintf("m-%d", i)))
		require.NoError(t, Validate(s))
		if f := s.GetFlavor(); f != CpcFlavorEmpty && f != CpcFlavorSparse {
			sawPromotion = true
		}
	}
	assert.True(t, sawPromotion, "100 updates at lgK=%d should cross the 3K/32 sparse-to-windowed threshold", minLgK)
	assert.Greater(t, s.GetEstimate(), 0.0)
}

func TestMoveWindowComputesFiColFromSurvivingEarlyZoneGap(t *testing.T) {
	s, err := NewCpcSketchWithDefault(8)
	require.NoError(t, err)
	k := 1 << s.lgK
	window := make([]byte, k)
	for i := range window {
		window[i] = 0xff
	}
	window[0] = 0b11111110 // row 0 never saw column 0; that gap survives every shift
	s.slidingWindow = window
	s.windowOffset = 0
	table, err := newPairTable(minLgSizeInts(s.lgK), s.lgK+6)
	require.NoError(t, err)
	s.pairTable = table
	s.numCoupons = uint64(k)*8 - 1

	require.NoError(t, s.moveWindow(2))
	assert.Equal(t, 2, s.windowOffset)
	assert.Equal(t, 0, s.fiCol, "row 0's permanent gap at column 0 must hold fiCol at 0 rather than windowOffset")
}

func TestCpcSketchSerializationRoundTrip(t *testing.T) {
	s, err := NewCpcSketchWithDefault(10)
	require.NoError(t, err)
	for i := 0; i < 5000; i++ {
		require.NoError(t, s.UpdateString(fmt.Sprintf("x-%d", i)))
	}

	bytes, err := s.ToCompactSlice()
	require.NoError(t, err)

	deser, err := NewCpcSketchFromSliceWithDefault(bytes)
	require.NoError(t, err)
	assert.Equal(t, s.GetNumCoupons(), deser.GetNumCoupons())
	assert.InDelta(t, s.GetEstimate(), deser.GetEstimate(), 1e-9)
	require.NoError(t, Validate(deser))
}

func TestCpcSketchSerializationRoundTripEmpty(t *testing.T) {
	s, err := NewCpcSketchWithDefault(12)
	require.NoError(t, err)
	bytes, err := s.ToCompactSlice()
	require.NoError(t, err)
	deser, err := NewCpcSketchFromSliceWithDefault(bytes)
	require.NoError(t, err)
	assert.True(t, deser.IsEmpty())
	assert.Equal(t, CpcFormatEmptyMerged, deser.GetFormat())
}

func TestCpcSketchSerializationRejectsWrongSeed(t *testing.T) {
	s, err := NewCpcSketch(10, 123)
	require.NoError(t, err)
	require.NoError(t, s.UpdateString("a"))
	bytes, err := s.ToCompactSlice()
	require.NoError(t, err)
	_, err = NewCpcSketchFromSlice(bytes, 456)
	assert.Error(t, err)
	var sketchErr *SketchError
	require.ErrorAs(t, err, &sketchErr)
	assert.Equal(t, Corruption, sketchErr.Kind)
}

func TestCpcSketchSerializationRejectsWrongSerialVersion(t *testing.T) {
	s, err := NewCpcSketchWithDefault(10)
	require.NoError(t, err)
	require.NoError(t, s.UpdateString("a"))
	bytes, err := s.ToCompactSlice()
	require.NoError(t, err)
	bytes[serialVersionByte] = serialVersion + 1
	_, err = NewCpcSketchFromSliceWithDefault(bytes)
	assert.Error(t, err)
	var sketchErr *SketchError
	require.ErrorAs(t, err, &sketchErr)
	assert.Equal(t, Corruption, sketchErr.Kind)
}

func TestCpcSketchSerializationRejectsBadPreambleInts(t *testing.T) {
	s, err := NewCpcSketchWithDefault(10)
	require.NoError(t, err)
	require.NoError(t, s.UpdateString("a"))
	bytes, err := s.ToCompactSlice()
	require.NoError(t, err)
	bytes[preambleIntsByte]++
	_, err = NewCpcSketchFromSliceWithDefault(bytes)
	assert.Error(t, err)
	var sketchErr *SketchError
	require.ErrorAs(t, err, &sketchErr)
	assert.Equal(t, Corruption, sketchErr.Kind)
}

func TestCpcSketchCopyIsIndependent(t *testing.T) {
	s, err := NewCpcSketchWithDefault(10)
	require.NoError(t, err)
	for i := 0; i < 2000; i++ {
		require.NoError(t, s.UpdateString(fmt.Sprintf("c-%d", i)))
	}
	clone := s.Copy()
	require.NoError(t, clone.UpdateString("only-in-clone"))
	assert.NotEqual(t, s.GetNumCoupons(), clone.GetNumCoupons())
}

func TestCpcSketchUpdateVariants(t *testing.T) {
	s, err := NewCpcSketchWithDefault(10)
	require.NoError(t, err)
	require.NoError(t, s.UpdateUint64(42))
	require.NoError(t, s.UpdateInt64(-7))
	require.NoError(t, s.UpdateByteSlice([]byte("hello")))
	require.NoError(t, s.UpdateInt64Slice([]int64{1, 2, 3}))
	require.NoError(t, s.UpdateString(""))
	require.NoError(t, s.UpdateByteSlice(nil))
	require.NoError(t, s.UpdateInt64Slice(nil))
	assert.Equal(t, uint64(4), s.GetNumCoupons())
}
