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
	"math"
	"math/bits"

	"github.com/distinctcount/cpc-go/internal"
)

// CpcSketch is a Compressed Probabilistic Counting distinct-count sketch.
// It starts in the SPARSE flavor, storing every observed coupon in an
// open-addressed pairTable, then promotes to a sliding 8-bit-per-row window
// plus a much smaller surprising-value table once enough coupons have
// accumulated that most of the bit matrix is predictable.
type CpcSketch struct {
	seed uint64
	lgK  int

	numCoupons uint64
	mergeFlag  bool // true once this sketch is the result of a union; HIP tracking is then frozen

	fiCol        int
	windowOffset int

	slidingWindow []byte // one byte per row, nil until the sketch promotes out of SPARSE
	pairTable     *pairTable

	kxp             float64
	hipEstAccum     float64
	windowMoveCount int
}

// NewCpcSketch creates an empty sketch with the given lgK (the sketch has
// 2^lgK rows) and update seed.
func NewCpcSketch(lgK int, seed uint64) (*CpcSketch, error) {
	if err := checkLgK(lgK); err != nil {
		return nil, err
	}
	table, err := newPairTable(minLgSizeInts(lgK), lgK+6)
	if err != nil {
		return nil, err
	}
	return &CpcSketch{
		seed:      seed,
		lgK:       lgK,
		pairTable: table,
		kxp:       float64(uint64(1) << lgK),
	}, nil
}

// NewCpcSketchWithDefault creates an empty sketch using the package's
// default update seed.
func NewCpcSketchWithDefault(lgK int) (*CpcSketch, error) {
	return NewCpcSketch(lgK, internal.DEFAULT_UPDATE_SEED)
}

// GetLgK returns the sketch's lgK.
func (s *CpcSketch) GetLgK() int { return s.lgK }

// GetNumCoupons returns the number of distinct coupons currently recorded.
func (s *CpcSketch) GetNumCoupons() uint64 { return s.numCoupons }

// IsEmpty reports whether the sketch has never seen an update.
func (s *CpcSketch) IsEmpty() bool { return s.numCoupons == 0 }

// GetFlavor returns the sketch's current coupon-collector flavor.
func (s *CpcSketch) GetFlavor() CpcFlavor { return determineFlavor(s.lgK, s.numCoupons) }

// GetFormat returns the on-wire layout ToCompactSlice would currently use.
func (s *CpcSketch) GetFormat() CpcFormat {
	hasHip := !s.mergeFlag && s.numCoupons > 0
	hasTable := s.pairTable != nil && s.pairTable.numPairs > 0
	hasWindow := s.slidingWindow != nil
	return getFormat(hasHip, hasTable, hasWindow)
}

// rowColFromHashes derives a coupon's row and column from a 128-bit hash:
// row is h0 mod 2^lgK, i.e. h0's low lgK bits, per the wire format's row_col
// derivation; col is the leading-zero count of h1, capped at 63, which
// approximates the geometric column distribution P(col=j) = 2^-(j+1) the
// estimators assume.
func rowColFromHashes(h0, h1 uint64, lgK int) (row, col uint32) {
	row = uint32(h0) & ((uint32(1) << lgK) - 1)
	c := bits.LeadingZeros64(h1)
	if c > 63 {
		c = 63
	}
	return row, uint32(c)
}

func rowColCode(row, col uint32) uint32 {
	code := (row << 6) | col
	if code == emptySlot {
		code ^= 1 << 6
	}
	return code
}

func (s *CpcSketch) updateBytes(data []byte) error {
	h0, h1 := internal.Hash128(data, s.seed)
	row, col := rowColFromHashes(h0, h1, s.lgK)
	return s.rowColUpdate(row, col)
}

// UpdateUint64 registers a uint64 item.
func (s *CpcSketch) UpdateUint64(datum uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], datum)
	return s.updateBytes(buf[:])
}

// UpdateInt64 registers an int64 item.
func (s *CpcSketch) UpdateInt64(datum int64) error {
	return s.UpdateUint64(uint64(datum))
}

// UpdateString registers a string item. The empty string is ignored, since
// it carries no information to distinguish it from "never updated".
func (s *CpcSketch) UpdateString(datum string) error {
	if len(datum) == 0 {
		return nil
	}
	return s.updateBytes([]byte(datum))
}

// UpdateByteSlice registers a byte slice item.
func (s *CpcSketch) UpdateByteSlice(datum []byte) error {
	if len(datum) == 0 {
		return nil
	}
	return s.updateBytes(datum)
}

// UpdateInt64Slice registers an int64 slice item, hashed as a unit with the
// pack's int64-slice MurmurHash3_x64_128 routine, which reads the slice's
// 8-byte words directly instead of a byte buffer.
func (s *CpcSketch) UpdateInt64Slice(datum []int64) error {
	if len(datum) == 0 {
		return nil
	}
	h0, h1 := internal.HashInt64SliceMurmur3(datum, 0, len(datum), s.seed)
	row, col := rowColFromHashes(h0, h1, s.lgK)
	return s.rowColUpdate(row, col)
}

// rowColUpdate is the single entry point every Update* variant and the
// union's merge logic funnel through.
func (s *CpcSketch) rowColUpdate(row, col uint32) error {
	if int(col) < s.fiCol {
		return nil
	}
	if s.slidingWindow == nil {
		return s.updateSparse(row, col)
	}
	return s.updateWindowed(row, col)
}

func (s *CpcSketch) updateSparse(row, col uint32) error {
	rowCol := rowColCode(row, col)
	novel, err := s.pairTable.maybeInsert(rowCol)
	if err != nil {
		return err
	}
	if !novel {
		return nil
	}
	s.numCoupons++
	if !s.mergeFlag {
		s.updateHIP(col)
	}
	return s.afterNovelCoupon()
}

// updateWindowed handles a coupon once the sketch has a sliding window. A
// column below the window is assumed 1 by default, so a present entry in
// pairTable there means "surprisingly still 0"; deleting it on a matching
// update is what makes the bit become 1. A column above the window is
// assumed 0 by default, so a present entry means "surprisingly already 1".
func (s *CpcSketch) updateWindowed(row, col uint32) error {
	if int(col) < s.windowOffset {
		rowCol := rowColCode(row, col)
		found, err := s.pairTable.maybeDelete(rowCol, s.lgK)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		s.numCoupons++
		if !s.mergeFlag {
			s.updateHIP(col)
		}
		return s.afterNovelCoupon()
	}

	colOffset := int(col) - s.windowOffset
	if colOffset < 8 {
		bit := byte(1) << uint(colOffset)
		if s.slidingWindow[row]&bit != 0 {
			return nil
		}
		s.slidingWindow[row] |= bit
		s.numCoupons++
		if !s.mergeFlag {
			s.updateHIP(col)
		}
		return s.afterNovelCoupon()
	}

	rowCol := rowColCode(row, col)
	novel, err := s.pairTable.maybeInsert(rowCol)
	if err != nil {
		return err
	}
	if !novel {
		return nil
	}
	s.numCoupons++
	if !s.mergeFlag {
		s.updateHIP(col)
	}
	return s.afterNovelCoupon()
}

// updateHIP folds one newly observed coupon into the Historic Inverse
// Probability accumulator: K/kxp estimates the reciprocal of the current
// probability that an update produces a novel coupon, and must be added
// before kxp is decremented for this coupon.
func (s *CpcSketch) updateHIP(col uint32) {
	k := float64(uint64(1) << s.lgK)
	if s.kxp > 0 {
		s.hipEstAccum += k / s.kxp
	}
	s.kxp -= kxpDecrement(int(col))
}

// afterNovelCoupon runs the state-machine transitions that can follow any
// coupon that increased numCoupons: promoting out of SPARSE, or sliding the
// window forward.
func (s *CpcSketch) afterNovelCoupon() error {
	if s.slidingWindow == nil {
		if determineFlavor(s.lgK, s.numCoupons) == CpcFlavorSparse {
			return nil
		}
		return s.promoteSparseToWindowed()
	}
	newOffset := determineCorrectOffset(s.lgK, s.numCoupons)
	if newOffset > s.windowOffset {
		if err := s.moveWindow(newOffset); err != nil {
			return err
		}
	}
	return nil
}

// promoteSparseToWindowed converts the sparse pair table into a window (at
// offset 0, since that is always the correct offset at this transition)
// plus a surprising-value table holding whatever coupons landed above the
// window's 8 columns.
func (s *CpcSketch) promoteSparseToWindowed() error {
	rtAssertEqualsBool(s.slidingWindow == nil, true)
	k := 1 << s.lgK
	validBits := s.pairTable.validBits
	window := make([]byte, k)
	var surprising []uint32
	for _, item := range s.pairTable.items() {
		row := item >> 6
		col := item & 63
		if col < 8 {
			window[row] |= byte(1) << col
		} else {
			surprising = append(surprising, item)
		}
	}
	newTable, err := newPairTableFromItems(surprising, validBits, s.lgK)
	if err != nil {
		return err
	}
	s.slidingWindow = window
	s.windowOffset = 0
	s.fiCol = 0
	s.pairTable = newTable
	return nil
}

// moveWindow slides the window forward to newOffset, rebuilding the full
// bit matrix and re-deriving both the window bytes and the surprising-value
// table from scratch. Every 8th call also realigns kxp from the matrix,
// since repeated incremental decrements drift under floating point error.
func (s *CpcSketch) moveWindow(newOffset int) error {
	rtAssert(newOffset > s.windowOffset)
	k := 1 << s.lgK
	matrix := buildBitMatrix(s)
	validBits := s.pairTable.validBits

	newWindow := make([]byte, k)
	maskClearWindow := ^(uint64(0xff) << uint(newOffset))
	maskFlipEarlyZone := uint64(1)<<uint(newOffset) - 1
	var allSurprisesOred uint64
	var surprising []uint32
	for row := 0; row < k; row++ {
		m := matrix[row]
		newWindow[row] = byte(m >> uint(newOffset))

		// Clearing the window leaves only the early zone (below newOffset)
		// and the above zone (at/above newOffset+8); XOR-ing the early zone
		// against its all-ones default converts its surprising 0s into 1s
		// (and vice versa) so every remaining set bit in pattern, in either
		// zone, is a surprise to record.
		pattern := m & maskClearWindow
		pattern ^= maskFlipEarlyZone
		allSurprisesOred |= pattern
		for pattern != 0 {
			col := bits.TrailingZeros64(pattern)
			pattern &= pattern - 1
			surprising = append(surprising, rowColCode(uint32(row), uint32(col)))
		}
	}

	newTable, err := newPairTableFromItems(surprising, validBits, s.lgK)
	if err != nil {
		return err
	}
	s.slidingWindow = newWindow
	s.windowOffset = newOffset
	s.pairTable = newTable

	fiCol := bits.TrailingZeros64(allSurprisesOred)
	if fiCol > newOffset {
		fiCol = newOffset
	}
	s.fiCol = fiCol

	s.windowMoveCount++
	if !s.mergeFlag && s.windowMoveCount%8 == 0 {
		s.kxp = refreshKXP(s.lgK, matrix)
	}
	return nil
}

// GetEstimate returns the sketch's best distinct-count estimate: the HIP
// estimator while it is still valid, or the ICON estimator once a merge has
// invalidated HIP tracking.
func (s *CpcSketch) GetEstimate() float64 {
	if s.mergeFlag {
		return s.GetIconEstimate()
	}
	return s.GetHipEstimate()
}

// GetHipEstimate returns the path-dependent Historic Inverse Probability
// estimate. It is only meaningful while mergeFlag is false.
func (s *CpcSketch) GetHipEstimate() float64 { return s.hipEstAccum }

// GetIconEstimate returns the estimate derived purely from (lgK,
// numCoupons), valid regardless of merge history.
func (s *CpcSketch) GetIconEstimate() float64 { return iconEstimate(s.lgK, s.numCoupons) }

// GetLowerBound returns a kappa-sigma lower confidence bound, kappa in {1,2,3}.
func (s *CpcSketch) GetLowerBound(kappa int) (float64, error) {
	if err := checkKappa(kappa); err != nil {
		return 0, err
	}
	if s.mergeFlag {
		return iconConfidenceLB(s.lgK, s.numCoupons, kappa), nil
	}
	return hipConfidenceLB(s.lgK, s.numCoupons, s.hipEstAccum, kappa), nil
}

// GetUpperBound returns a kappa-sigma upper confidence bound, kappa in {1,2,3}.
func (s *CpcSketch) GetUpperBound(kappa int) (float64, error) {
	if err := checkKappa(kappa); err != nil {
		return 0, err
	}
	if s.mergeFlag {
		return iconConfidenceUB(s.lgK, s.numCoupons, kappa), nil
	}
	return hipConfidenceUB(s.lgK, s.numCoupons, s.hipEstAccum, kappa), nil
}

// Copy returns a deep copy of the sketch.
func (s *CpcSketch) Copy() *CpcSketch {
	c := *s
	if s.pairTable != nil {
		c.pairTable = s.pairTable.copy()
	}
	if s.slidingWindow != nil {
		c.slidingWindow = make([]byte, len(s.slidingWindow))
		copy(c.slidingWindow, s.slidingWindow)
	}
	return &c
}

// ToCompactSlice serializes the sketch to its compact binary form.
func (s *CpcSketch) ToCompactSlice() ([]byte, error) {
	hasHip := !s.mergeFlag && s.numCoupons > 0
	hasTable := s.pairTable != nil && s.pairTable.numPairs > 0
	hasWindow := s.slidingWindow != nil

	seedHash, err := internal.ComputeSeedHash(int64(s.seed))
	if err != nil {
		return nil, wrapError(Internal, err, "computing seed hash")
	}

	var tableWords, windowWords []uint32
	if hasTable {
		tableWords = compressTable(s.pairTable)
	}
	if hasWindow {
		windowWords = compressWindow(s.slidingWindow)
	}

	preambleInts := getPreambleInts(s.numCoupons, hasHip, hasTable, hasWindow)
	totalWords := preambleInts + len(tableWords) + len(windowWords)
	buf := make([]byte, totalWords*4)

	var flags byte
	if hasHip {
		flags |= flagHasHip
	}
	if hasTable {
		flags |= flagHasTable
	}
	if hasWindow {
		flags |= flagHasWindow
	}
	encodeLowPreamble(buf, preambleInts, s.lgK, s.fiCol, flags, seedHash)

	pos := lowPreambleBytes
	if s.numCoupons > 0 {
		binary.LittleEndian.PutUint32(buf[pos:], uint32(s.numCoupons))
		pos += 4
	}
	if hasHip && !(hasTable && hasWindow) {
		pos = putFloat64(buf, pos, s.kxp)
		pos = putFloat64(buf, pos, s.hipEstAccum)
	}
	if hasTable && hasWindow {
		binary.LittleEndian.PutUint32(buf[pos:], uint32(s.pairTable.numPairs))
		pos += 4
	}
	if hasHip && hasTable && hasWindow {
		pos = putFloat64(buf, pos, s.kxp)
		pos = putFloat64(buf, pos, s.hipEstAccum)
	}
	if hasTable {
		binary.LittleEndian.PutUint32(buf[pos:], uint32(len(tableWords)))
		pos += 4
	}
	if hasWindow {
		binary.LittleEndian.PutUint32(buf[pos:], uint32(len(windowWords)))
		pos += 4
	}
	for _, w := range windowWords {
		binary.LittleEndian.PutUint32(buf[pos:], w)
		pos += 4
	}
	for _, w := range tableWords {
		binary.LittleEndian.PutUint32(buf[pos:], w)
		pos += 4
	}
	return buf, nil
}

func putFloat64(buf []byte, pos int, v float64) int {
	binary.LittleEndian.PutUint64(buf[pos:], math.Float64bits(v))
	return pos + 8
}

func getFloat64(buf []byte, pos int) (float64, int) {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[pos:])), pos + 8
}

// NewCpcSketchFromSlice deserializes a sketch from its compact binary form,
// validating that it was produced with the given seed.
func NewCpcSketchFromSlice(bytes []byte, seed uint64) (*CpcSketch, error) {
	pre, err := decodeLowPreamble(bytes)
	if err != nil {
		return nil, err
	}
	if pre.serialVersion != serialVersion {
		return nil, newError(Corruption, "serial version %d is not %d", pre.serialVersion, serialVersion)
	}
	if pre.familyID != internal.FamilyEnum.CPC.Id {
		return nil, newError(Corruption, "family id %d is not the CPC family", pre.familyID)
	}
	if err := checkLgK(pre.lgK); err != nil {
		return nil, err
	}
	seedHash, err := internal.ComputeSeedHash(int64(seed))
	if err != nil {
		return nil, err
	}
	if seedHash != pre.seedHash {
		return nil, newError(Corruption, "sketch was built with a different update seed")
	}

	hasHip := pre.hasHip()
	hasTable := pre.hasTable()
	hasWindow := pre.hasWindow()

	pos := lowPreambleBytes
	var numCoupons uint64
	if hasTable || hasWindow {
		numCoupons = uint64(binary.LittleEndian.Uint32(bytes[pos:]))
		pos += 4
	}

	if wantPreambleInts := getPreambleInts(numCoupons, hasHip, hasTable, hasWindow); pre.preambleInts != wantPreambleInts {
		return nil, newError(Corruption, "preamble_ints %d does not match the %d implied by the decoded flags", pre.preambleInts, wantPreambleInts)
	}

	var kxp, hipEstAccum float64
	if hasHip && !(hasTable && hasWindow) {
		kxp, pos = getFloat64(bytes, pos)
		hipEstAccum, pos = getFloat64(bytes, pos)
	}

	tableNumEntries := 0
	if hasTable && hasWindow {
		tableNumEntries = int(binary.LittleEndian.Uint32(bytes[pos:]))
		pos += 4
	}

	if hasHip && hasTable && hasWindow {
		kxp, pos = getFloat64(bytes, pos)
		hipEstAccum, pos = getFloat64(bytes, pos)
	}

	tableDataWords := 0
	if hasTable {
		tableDataWords = int(binary.LittleEndian.Uint32(bytes[pos:]))
		pos += 4
	}
	windowDataWords := 0
	if hasWindow {
		windowDataWords = int(binary.LittleEndian.Uint32(bytes[pos:]))
		pos += 4
	}

	var window []byte
	if hasWindow {
		words := make([]uint32, windowDataWords)
		for i := range words {
			words[i] = binary.LittleEndian.Uint32(bytes[pos:])
			pos += 4
		}
		window, err = uncompressWindow(words, 1<<pre.lgK)
		if err != nil {
			return nil, err
		}
	}

	var table *pairTable
	if hasTable {
		words := make([]uint32, tableDataWords)
		for i := range words {
			words[i] = binary.LittleEndian.Uint32(bytes[pos:])
			pos += 4
		}
		numEntries := tableNumEntries
		if !hasWindow {
			numEntries = int(numCoupons)
		}
		table, err = uncompressTable(words, numEntries, pre.lgK+6, pre.lgK)
		if err != nil {
			return nil, err
		}
	} else if !hasWindow {
		table, err = newPairTable(minLgSizeInts(pre.lgK), pre.lgK+6)
		if err != nil {
			return nil, err
		}
	}

	sketch := &CpcSketch{
		seed:          seed,
		lgK:           pre.lgK,
		numCoupons:    numCoupons,
		mergeFlag:     !hasHip,
		fiCol:         pre.fiCol,
		windowOffset:  determineCorrectOffset(pre.lgK, numCoupons),
		slidingWindow: window,
		pairTable:     table,
		kxp:           kxp,
		hipEstAccum:   hipEstAccum,
	}
	if !hasHip {
		sketch.kxp = float64(uint64(1) << pre.lgK)
	}
	return sketch, nil
}

// NewCpcSketchFromSliceWithDefault deserializes a sketch built with the
// package's default update seed.
func NewCpcSketchFromSliceWithDefault(bytes []byte) (*CpcSketch, error) {
	return NewCpcSketchFromSlice(bytes, internal.DEFAULT_UPDATE_SEED)
}
