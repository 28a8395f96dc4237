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

import "encoding/binary"

// compressTable packs a pair table's row_col codes, sorted ascending, one
// per uint32 word. The reference implementation instead Huffman-codes these
// against a characterized column-count distribution, but the Huffman
// tables never shipped with this build, so this codec stores each row_col
// uncompressed (see DESIGN.md's compressor-shim open question). The wire
// format's table_num_entries field carries the entry count either way, so
// a future Huffman codec is a drop-in replacement behind this function.
func compressTable(table *pairTable) []uint32 {
	items := table.sortedItems()
	words := make([]uint32, len(items))
	copy(words, items)
	return words
}

// uncompressTable is compressTable's inverse.
func uncompressTable(words []uint32, numEntries, validBits, lgK int) (*pairTable, error) {
	if numEntries > len(words) {
		return nil, newError(Corruption, "table_num_entries %d exceeds table_data_words %d", numEntries, len(words))
	}
	items := make([]uint32, numEntries)
	copy(items, words[:numEntries])
	return newPairTableFromItems(items, validBits, lgK)
}

// compressWindow packs a sketch's per-row 8-bit window into uint32 words,
// four bytes per word, little-endian, zero-padded to a whole number of
// words. Like compressTable, this skips the real codec's Huffman coding of
// the window's run lengths.
func compressWindow(window []byte) []uint32 {
	numWords := (len(window) + 3) / 4
	padded := make([]byte, numWords*4)
	copy(padded, window)
	words := make([]uint32, numWords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(padded[i*4:])
	}
	return words
}

// uncompressWindow is compressWindow's inverse, trimming the zero padding
// back off to the sketch's K rows.
func uncompressWindow(words []uint32, k int) ([]byte, error) {
	if len(words)*4 < k {
		return nil, newError(Corruption, "window_data_words %d too short for K=%d", len(words), k)
	}
	padded := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(padded[i*4:], w)
	}
	return padded[:k], nil
}
