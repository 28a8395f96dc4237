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

// byteBaseWeight[b] is Σ 2^-(p+1) over the bit positions p set in byte b. It
// lets rowWeight decompose a 64-bit row into 8 byte lookups instead of 64
// single-bit ones.
var byteBaseWeight [256]float64

func init() {
	for b := 0; b < 256; b++ {
		w := 0.0
		for p := 0; p < 8; p++ {
			if b&(1<<p) != 0 {
				w += mustInvPow2(p + 1)
			}
		}
		byteBaseWeight[b] = w
	}
}

func mustInvPow2(e int) float64 {
	v, err := internal.InvPow2(e)
	if err != nil {
		panic(err)
	}
	return v
}

// kxpDecrement is how much kxp drops when column col's bit newly transitions
// from 0 to 1 in some row. It must only be applied once per (row, col), on
// the transition, never on a duplicate update of an already-set bit.
func kxpDecrement(col int) float64 {
	return mustInvPow2(col + 1)
}

// rowWeight is Σ 2^-(j+1) over the bits j set in row, decomposed byte by
// byte: byte j covers bits 8j..8j+7, and 2^-(8j+p+1) factors as
// byteBaseWeight contribution scaled by 2^-8j.
func rowWeight(row uint64) float64 {
	if row == 0 {
		return 0.0
	}
	total := 0.0
	for j := 0; j < 8; j++ {
		b := byte(row >> (8 * j))
		if b == 0 {
			continue
		}
		total += byteBaseWeight[b] * mustInvPow2(8*j)
	}
	return total
}

// refreshKXP recomputes kxp from the full bit matrix: kxp = K - Σ_rows
// Σ_{set bits j} 2^-(j+1). Repeated incremental decrements under
// kxpDecrement drift under floating point error, so the sliding-window
// engine calls this every 8th window shift to realign.
func refreshKXP(lgK int, bitMatrix []uint64) float64 {
	k := float64(uint64(1) << lgK)
	total := 0.0
	for _, row := range bitMatrix {
		total += rowWeight(row)
	}
	return k - total
}
