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

package internal

// Family identifies a sketch family in the shared binary envelope (spec §6).
type Family struct {
	Id          int
	MaxPreLongs int
}

type families struct {
	CPC Family
}

// FamilyEnum mirrors the stable family registry of the sister implementation.
// Only CPC is populated here; the registry exists so the family byte in the
// envelope can be validated against a named constant instead of a bare int.
var FamilyEnum = &families{
	CPC: Family{
		Id:          16,
		MaxPreLongs: 8,
	},
}
