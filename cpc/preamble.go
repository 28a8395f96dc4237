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
	"encoding/binary"

	"github.com/distinctcount/cpc-go/internal"
)

const serialVersion = 1

// Byte offsets within the 8-byte low preamble (the first two words of every
// serialized sketch).
const (
	preambleIntsByte         = 0
	serialVersionByte        = 1
	familyByte               = 2
	lgKByte                  = 3
	firstInterestingColByte  = 4
	flagsByte                = 5
	seedHashByteLo           = 6
	lowPreambleBytes         = 8
)

const (
	flagHasHip    byte = 1 << 0
	flagHasTable  byte = 1 << 1
	flagHasWindow byte = 1 << 2
)

// getFormat picks the on-wire layout for the given combination of which
// optional sections are present, mirroring the flavor-driven branches the
// reference serializer takes.
func getFormat(hasHip, hasTable, hasWindow bool) CpcFormat {
	switch {
	case !hasTable && !hasWindow:
		if hasHip {
			return CpcFormatEmptyHip
		}
		return CpcFormatEmptyMerged
	case hasTable && !hasWindow:
		if hasHip {
			return CpcFormatSparceHybridHip
		}
		return CpcFormatSparseHybridMerged
	case !hasTable && hasWindow:
		if hasHip {
			return CpcFormatPinnedSlidingHipNoSv
		}
		return CpcFormatPinnedSlidingMergedNoSv
	default:
		if hasHip {
			return CpcFormatPinnedSlidingHip
		}
		return CpcFormatPinnedSlidingMerged
	}
}

// getPreambleInts computes the exact preamble length in 4-byte words: 2 for
// the low preamble, +1 if num_coupons is carried, +4 if the HIP accumulators
// are carried, +1 (sparse) or +2 (windowed, which also needs
// table_num_entries) if a table is carried, +1 if a window is carried.
func getPreambleInts(numCoupons uint64, hasHip, hasTable, hasWindow bool) int {
	n := 2
	if numCoupons > 0 {
		n++
	}
	if hasHip {
		n += 4
	}
	if hasTable {
		if hasWindow {
			n += 2
		} else {
			n++
		}
	}
	if hasWindow {
		n++
	}
	return n
}

func encodeLowPreamble(buf []byte, preambleInts, lgK, fiCol int, flags byte, seedHash int16) {
	buf[preambleIntsByte] = byte(preambleInts)
	buf[serialVersionByte] = serialVersion
	buf[familyByte] = byte(internal.FamilyEnum.CPC.Id)
	buf[lgKByte] = byte(lgK)
	buf[firstInterestingColByte] = byte(fiCol)
	buf[flagsByte] = flags
	binary.LittleEndian.PutUint16(buf[seedHashByteLo:], uint16(seedHash))
}

type lowPreamble struct {
	preambleInts  int
	serialVersion int
	familyID      int
	lgK           int
	fiCol         int
	flags         byte
	seedHash      int16
}

func decodeLowPreamble(buf []byte) (lowPreamble, error) {
	if len(buf) < lowPreambleBytes {
		return lowPreamble{}, newError(Corruption, "buffer shorter than the 8-byte low preamble: %d bytes", len(buf))
	}
	return lowPreamble{
		preambleInts:  int(buf[preambleIntsByte]),
		serialVersion: int(buf[serialVersionByte]),
		familyID:      int(buf[familyByte]),
		lgK:           int(buf[lgKByte]),
		fiCol:         int(buf[firstInterestingColByte]),
		flags:         buf[flagsByte],
		seedHash:      int16(binary.LittleEndian.Uint16(buf[seedHashByteLo:])),
	}, nil
}

func (p lowPreamble) hasHip() bool    { return p.flags&flagHasHip != 0 }
func (p lowPreamble) hasTable() bool  { return p.flags&flagHasTable != 0 }
func (p lowPreamble) hasWindow() bool { return p.flags&flagHasWindow != 0 }
