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

// CpcWrapper is a read-only view over a serialized sketch: every accessor
// reads through to a sketch built once at construction, with no Update
// method, so callers can query a sketch someone else produced without
// committing to carrying a mutable copy around.
type CpcWrapper struct {
	sketch *CpcSketch
}

// NewCpcWrapper wraps a compact sketch image, validating it against seed.
func NewCpcWrapper(bytes []byte, seed uint64) (*CpcWrapper, error) {
	sketch, err := NewCpcSketchFromSlice(bytes, seed)
	if err != nil {
		return nil, err
	}
	return &CpcWrapper{sketch: sketch}, nil
}

// NewCpcWrapperWithDefault wraps a compact sketch image built with the
// package's default update seed.
func NewCpcWrapperWithDefault(bytes []byte) (*CpcWrapper, error) {
	return NewCpcWrapper(bytes, internal.DEFAULT_UPDATE_SEED)
}

func (w *CpcWrapper) GetEstimate() float64 { return w.sketch.GetEstimate() }

func (w *CpcWrapper) GetLowerBound(kappa int) (float64, error) { return w.sketch.GetLowerBound(kappa) }

func (w *CpcWrapper) GetUpperBound(kappa int) (float64, error) { return w.sketch.GetUpperBound(kappa) }

func (w *CpcWrapper) GetLgK() int { return w.sketch.GetLgK() }

func (w *CpcWrapper) GetNumCoupons() uint64 { return w.sketch.GetNumCoupons() }

func (w *CpcWrapper) IsEmpty() bool { return w.sketch.IsEmpty() }
