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
	"slices"

	"github.com/distinctcount/cpc-go/internal"
)

const (
	emptySlot = ^uint32(0) // 0xFFFFFFFF: the one uint32 value row_col_update never produces

	upsizeNumer   = 3
	upsizeDenom   = 4
	downsizeNumer = 1
	downsizeDenom = 4
)

// pairTable is the open-addressed hash set of row_col codes used while a
// sketch is SPARSE, and for the surprising-value zones once it goes
// windowed. lgSizeInts is the log2 of the slot count; validBits is the
// number of significant bits in a stored row_col, used to derive the probe
// index from the code's high bits.
type pairTable struct {
	lgSizeInts int
	validBits  int
	numPairs   int
	slotsArr   []uint32
}

// minLgSizeInts is the floor on a table's lg(size), derived from the
// minimum-capacity rule 2^(6+lgK-11) capped at 4 slots: never smaller than
// 2^2 slots, and growing with lgK once lgK exceeds 7.
func minLgSizeInts(lgK int) int {
	return internal.MaxInt(lgK-5, 2)
}

func checkLgSizeInts(lgSizeInts int) error {
	if lgSizeInts < 2 {
		return newError(InvalidArgument, "lgSizeInts must be >= 2: %d", lgSizeInts)
	}
	return nil
}

func newPairTable(lgSizeInts, validBits int) (*pairTable, error) {
	if err := checkLgSizeInts(lgSizeInts); err != nil {
		return nil, err
	}
	slotsArr := make([]uint32, 1<<lgSizeInts)
	for i := range slotsArr {
		slotsArr[i] = emptySlot
	}
	return &pairTable{lgSizeInts: lgSizeInts, validBits: validBits, slotsArr: slotsArr}, nil
}

func (p *pairTable) clear() {
	for i := range p.slotsArr {
		p.slotsArr[i] = emptySlot
	}
	p.numPairs = 0
}

func (p *pairTable) probeIndex(item uint32) int {
	shift := p.validBits - p.lgSizeInts
	return int(item >> shift)
}

// maybeInsert inserts item if it's not already present, returning whether
// it was novel. It grows the table (3/4 load factor) when needed.
func (p *pairTable) maybeInsert(item uint32) (bool, error) {
	mask := (1 << p.lgSizeInts) - 1
	probe := p.probeIndex(item) & mask
	fetched := p.slotsArr[probe]
	for fetched != item && fetched != emptySlot {
		probe = (probe + 1) & mask
		fetched = p.slotsArr[probe]
	}
	if fetched == item {
		return false, nil
	}
	p.slotsArr[probe] = item
	p.numPairs++
	for upsizeDenom*p.numPairs > upsizeNumer*(1<<p.lgSizeInts) {
		if err := p.rebuild(p.lgSizeInts + 1); err != nil {
			return false, err
		}
	}
	return true, nil
}

// maybeDelete removes item if present (used for the "surprising 0" zone,
// where absence from the table is the default and presence means the bit
// is unexpectedly 0), returning whether it was found. It shrinks the table
// (1/4 load factor) when needed, never below minLgSizeInts(lgK).
func (p *pairTable) maybeDelete(item uint32, lgK int) (bool, error) {
	mask := (1 << p.lgSizeInts) - 1
	probe := p.probeIndex(item) & mask
	arr := p.slotsArr
	fetched := arr[probe]
	for fetched != item && fetched != emptySlot {
		probe = (probe + 1) & mask
		fetched = arr[probe]
	}
	if fetched == emptySlot {
		return false, nil
	}
	arr[probe] = emptySlot
	p.numPairs--

	var cluster []uint32
	probe = (probe + 1) & mask
	fetched = arr[probe]
	for fetched != emptySlot {
		cluster = append(cluster, fetched)
		arr[probe] = emptySlot
		p.numPairs--
		probe = (probe + 1) & mask
		fetched = arr[probe]
	}
	for _, it := range cluster {
		if _, err := p.maybeInsert(it); err != nil {
			return false, err
		}
	}

	floor := minLgSizeInts(lgK)
	for p.lgSizeInts > floor && downsizeDenom*p.numPairs < downsizeNumer*(1<<p.lgSizeInts) {
		if err := p.rebuild(p.lgSizeInts - 1); err != nil {
			return false, err
		}
	}
	return true, nil
}

// mustInsert inserts item, which the caller guarantees is not already
// present. Used when rebuilding a table from a trusted source (e.g. a
// deserialized, already-deduplicated list of pairs).
func (p *pairTable) mustInsert(item uint32) error {
	mask := (1 << p.lgSizeInts) - 1
	probe := p.probeIndex(item) & mask
	arr := p.slotsArr
	fetched := arr[probe]
	for fetched != item && fetched != emptySlot {
		probe = (probe + 1) & mask
		fetched = arr[probe]
	}
	if fetched == item {
		return newError(Internal, "mustInsert: item already present")
	}
	arr[probe] = item
	return nil
}

func (p *pairTable) rebuild(newLgSizeInts int) error {
	if err := checkLgSizeInts(newLgSizeInts); err != nil {
		return err
	}
	newSize := 1 << newLgSizeInts
	if newSize <= p.numPairs {
		return newError(Internal, "rebuild: newSize %d <= numPairs %d", newSize, p.numPairs)
	}
	oldSlotsArr := p.slotsArr
	p.slotsArr = make([]uint32, newSize)
	for i := range p.slotsArr {
		p.slotsArr[i] = emptySlot
	}
	p.lgSizeInts = newLgSizeInts
	p.numPairs = 0
	for _, item := range oldSlotsArr {
		if item != emptySlot {
			if _, err := p.maybeInsert(item); err != nil {
				return err
			}
		}
	}
	return nil
}

// copy returns a deep copy of the table.
func (p *pairTable) copy() *pairTable {
	slotsArr := make([]uint32, len(p.slotsArr))
	copy(slotsArr, p.slotsArr)
	return &pairTable{
		lgSizeInts: p.lgSizeInts,
		validBits:  p.validBits,
		numPairs:   p.numPairs,
		slotsArr:   slotsArr,
	}
}

// items returns the valid row_col codes currently in the table, in no
// particular order.
func (p *pairTable) items() []uint32 {
	result := make([]uint32, 0, p.numPairs)
	for _, v := range p.slotsArr {
		if v != emptySlot {
			result = append(result, v)
		}
	}
	return result
}

// sortedItems returns the valid row_col codes in ascending order, used by
// the serialization codec, which wants a canonical ordering before packing.
func (p *pairTable) sortedItems() []uint32 {
	result := p.items()
	slices.Sort(result)
	return result
}

func (p *pairTable) equals(other *pairTable) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.validBits != other.validBits || p.numPairs != other.numPairs {
		return false
	}
	a, b := p.sortedItems(), other.sortedItems()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// newPairTableFromItems builds a table sized for numPairs entries at the
// given validBits and inserts each item, which must already be
// deduplicated (as a deserialized table's contents are).
func newPairTableFromItems(items []uint32, validBits int, lgK int) (*pairTable, error) {
	lgSizeInts := minLgSizeInts(lgK)
	for upsizeDenom*len(items) > upsizeNumer*(1<<lgSizeInts) {
		lgSizeInts++
	}
	table, err := newPairTable(lgSizeInts, validBits)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := table.mustInsert(item); err != nil {
			return nil, err
		}
	}
	table.numPairs = len(items)
	return table, nil
}
