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
	"math/bits"

	"github.com/distinctcount/cpc-go/internal"
)

// CpcUnion accumulates coupons from any number of source sketches that all
// share the union's update seed and have an lgK at least the union's. Once a sketch has been through a
// union, its HIP accumulator is permanently invalid; GetResult always
// returns a sketch that reports the ICON estimate.
type CpcUnion struct {
	lgK         int
	seed        uint64
	accumulator *CpcSketch
}

// NewCpcUnion creates a union with the given lgK and update seed.
func NewCpcUnion(lgK int, seed uint64) (*CpcUnion, error) {
	if err := checkLgK(lgK); err != nil {
		return nil, err
	}
	acc, err := NewCpcSketch(lgK, seed)
	if err != nil {
		return nil, err
	}
	return &CpcUnion{lgK: lgK, seed: seed, accumulator: acc}, nil
}

// NewCpcUnionSketchWithDefault creates a union using the package's default
// update seed.
func NewCpcUnionSketchWithDefault(lgK int) (*CpcUnion, error) {
	return NewCpcUnion(lgK, internal.DEFAULT_UPDATE_SEED)
}

// Update folds sketch into the union. sketch must share the union's update
// seed and have lgK >= the union's lgK; a larger source is downsampled by
// masking its row index down to the union's lgK low bits, since a coupon's
// row is h0 mod 2^lgK, so a sketch built with more rows already carries the
// union's row as the low bits of its own wider row. A nil or empty sketch is
// a no-op.
func (u *CpcUnion) Update(sketch *CpcSketch) error {
	if sketch == nil || sketch.IsEmpty() {
		return nil
	}
	if sketch.lgK < u.lgK {
		return newError(InvalidArgument, "source lgK %d is smaller than union lgK %d", sketch.lgK, u.lgK)
	}
	if err := checkSeeds(u.seed, sketch.seed); err != nil {
		return err
	}

	u.accumulator.mergeFlag = true
	destMask := uint32(1<<u.lgK) - 1

	if sketch.slidingWindow == nil {
		if sketch.lgK == u.lgK {
			return walkTableUpdatingSketch(u.accumulator, sketch.pairTable)
		}
		for _, item := range sketch.pairTable.items() {
			row, col := item>>6, item&63
			if err := u.accumulator.rowColUpdate(row&destMask, col); err != nil {
				return err
			}
		}
		return nil
	}
	matrix := buildBitMatrix(sketch)
	for row, word := range matrix {
		downRow := uint32(row) & destMask
		for word != 0 {
			col := bits.TrailingZeros64(word)
			if err := u.accumulator.rowColUpdate(downRow, uint32(col)); err != nil {
				return err
			}
			word &= word - 1
		}
	}
	return nil
}

// GetResult returns a snapshot of the union's current state. The returned
// sketch is independent of further Update calls on the union.
func (u *CpcUnion) GetResult() (*CpcSketch, error) {
	result := u.accumulator.Copy()
	result.mergeFlag = true
	return result, nil
}

// GetLgK returns the union's lgK.
func (u *CpcUnion) GetLgK() int { return u.lgK }
