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

import "math"

const (
	iconEstimatorMaxColumn = 64
	iconEstimatorTolerance = 1e-15
)

// qnj is the probability that a specific (row, column-j) slot, out of 2^lgK
// rows with a geometric column distribution P(col=j) = 2^-(j+1), is never
// touched by any of n independent coupon draws.
func qnj(n, k float64, j int) float64 {
	return math.Exp(n * math.Log1p(-math.Exp2(-float64(j+1))/k))
}

// exactCofN is the exact expected number of distinct coupons collected after
// n updates into a sketch with 2^lgK rows. It follows directly from the
// coupon-collector identity: summed over every column j, k times the
// probability that a given row's column-j slot is touched at least once.
func exactCofN(n, k float64) float64 {
	total := 0.0
	for j := 0; j < iconEstimatorMaxColumn; j++ {
		total += 1.0 - qnj(n, k, j)
	}
	return k * total
}

// exactIconEstimatorBracketHi doubles from c until exactCofN overshoots it,
// producing an upper bracket for the bisection below.
func exactIconEstimatorBracketHi(k, c float64) float64 {
	hi := c
	if hi < 1.0 {
		hi = 1.0
	}
	for exactCofN(hi, k) < c {
		hi *= 2.0
	}
	return hi
}

// exactIconEstimatorBinarySearch inverts exactCofN by bisection, to a
// relative tolerance on n.
func exactIconEstimatorBinarySearch(k, c, lo, hi float64) float64 {
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2.0
		if (hi-lo)/mid < iconEstimatorTolerance {
			return mid
		}
		if exactCofN(mid, k) < c {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2.0
}

// exactIconEstimator estimates the number of distinct items n that produced
// c coupons in a sketch with 2^lgK rows as the n whose expected coupon count
// exactCofN equals c, found by numerically inverting exactCofN. This bisection is the
// ground-truth characterization reference; production iconEstimate is this
// function directly rather than a precomputed polynomial fit, since the
// fitted coefficients never shipped with this build (see DESIGN.md).
func exactIconEstimator(lgK int, c uint64) float64 {
	k := float64(uint64(1) << lgK)
	cc := float64(c)
	hi := exactIconEstimatorBracketHi(k, cc)
	return exactIconEstimatorBinarySearch(k, cc, 0.0, hi)
}

// iconEstimate is the distinct-count estimator that depends only on
// (lgK, numCoupons), valid even after a sketch has been merged (unlike the
// HIP estimator, whose accumulator is invalidated by merging).
func iconEstimate(lgK int, c uint64) float64 {
	if c == 0 {
		return 0.0
	}
	if c < 2 {
		return 1.0
	}
	return exactIconEstimator(lgK, c)
}
