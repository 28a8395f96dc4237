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

import "github.com/distinctcount/cpc-go/internal"

// CpcFlavor names the region of the coupon-collector state machine a
// sketch currently occupies, determined purely by (lgK, numCoupons).
type CpcFlavor int

const (
	CpcFlavorEmpty   CpcFlavor = iota //    0  == C <    1
	CpcFlavorSparse                   //    1  <= C <   3K/32
	CpcFlavorHybrid                   // 3K/32 <= C <   K/2
	CpcFlavorPinned                   //   K/2 <= C < 27K/8
	CpcFlavorSliding                  // 27K/8 <= C
)

func (f CpcFlavor) String() string {
	switch f {
	case CpcFlavorEmpty:
		return "EMPTY"
	case CpcFlavorSparse:
		return "SPARSE"
	case CpcFlavorHybrid:
		return "HYBRID"
	case CpcFlavorPinned:
		return "PINNED"
	case CpcFlavorSliding:
		return "SLIDING"
	default:
		return "UNKNOWN"
	}
}

// CpcFormat enumerates the eight on-wire layouts the serialization envelope
// can take, encoding merged-vs-HIP and which of table/window are present.
type CpcFormat int

const (
	CpcFormatEmptyMerged           CpcFormat = 0
	CpcFormatEmptyHip              CpcFormat = 1
	CpcFormatSparseHybridMerged    CpcFormat = 2
	CpcFormatSparceHybridHip       CpcFormat = 3
	CpcFormatPinnedSlidingMergedNoSv CpcFormat = 4
	CpcFormatPinnedSlidingHipNoSv    CpcFormat = 5
	CpcFormatPinnedSlidingMerged     CpcFormat = 6
	CpcFormatPinnedSlidingHip        CpcFormat = 7
)

func (f CpcFormat) String() string {
	switch f {
	case CpcFormatEmptyMerged:
		return "EMPTY_MERGED"
	case CpcFormatEmptyHip:
		return "EMPTY_HIP"
	case CpcFormatSparseHybridMerged:
		return "SPARSE_HYBRID_MERGED"
	case CpcFormatSparceHybridHip:
		return "SPARSE_HYBRID_HIP"
	case CpcFormatPinnedSlidingMergedNoSv:
		return "PINNED_SLIDING_MERGED_NOSV"
	case CpcFormatPinnedSlidingHipNoSv:
		return "PINNED_SLIDING_HIP_NOSV"
	case CpcFormatPinnedSlidingMerged:
		return "PINNED_SLIDING_MERGED"
	case CpcFormatPinnedSlidingHip:
		return "PINNED_SLIDING_HIP"
	default:
		return "UNKNOWN"
	}
}

func checkLgK(lgK int) error {
	if lgK < minLgK || lgK > maxLgK {
		return newError(InvalidArgument, "lgK must be >= %d and <= %d: %d", minLgK, maxLgK, lgK)
	}
	return nil
}

func checkKappa(kappa int) error {
	if kappa < 1 || kappa > 3 {
		return newError(InvalidArgument, "kappa must be 1, 2, or 3: %d", kappa)
	}
	return nil
}

func checkSeeds(seedA, seedB uint64) error {
	if seedA != seedB {
		return newError(InvalidArgument, "seed mismatch: %d != %d", seedA, seedB)
	}
	return nil
}

// determineFlavor classifies a sketch's region using only (lgK, C), per the
// coupon-collector state machine's five thresholds.
func determineFlavor(lgK int, c uint64) CpcFlavor {
	k := uint64(1) << lgK
	c2 := c << 1
	c8 := c << 3
	c32 := c << 5
	switch {
	case c == 0:
		return CpcFlavorEmpty
	case c32 < 3*k:
		return CpcFlavorSparse
	case c2 < k:
		return CpcFlavorHybrid
	case c8 < 27*k:
		return CpcFlavorPinned
	default:
		return CpcFlavorSliding
	}
}

// determineCorrectOffset computes the window_offset that the sliding-window
// engine should be at for a given (lgK, C), i.e. floor((8C - 19K) / 8K)
// clipped to zero from below.
func determineCorrectOffset(lgK int, c uint64) int {
	k := uint64(1) << lgK
	tmp := int64(c<<3) - int64(19*k)
	offset := 0
	if tmp >= 0 {
		offset = int(tmp >> (lgK + 3))
	}
	return internal.ClampInt(offset, 0, maxWindowOffset)
}
