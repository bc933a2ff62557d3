// Copyright 2021 The Project Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package verify

import "fmt"

// Leaf is one entry in the deterministic leaf ordering C5 step D builds:
// the operator head first, then each package head in iteration order. Proof
// is the inclusion proof the registry returned for LeafIndex.
type Leaf struct {
	Hash      []byte
	LeafIndex uint64
	Proof     [][]byte
}

// Inclusion verifies that every leaf in leaves was present in a log of
// length logLength committing to logRoot. It returns the first verification
// failure encountered; callers that need to know which leaf failed can
// check their own bookkeeping against the returned error's text.
func Inclusion(logLength uint64, logRoot []byte, leaves []Leaf) error {
	lv := NewLogVerifier()
	for _, leaf := range leaves {
		if err := lv.VerifyInclusionProof(int64(leaf.LeafIndex), int64(logLength), leaf.Proof, logRoot, leaf.Hash); err != nil {
			return fmt.Errorf("verify: inclusion proof for leaf %d failed: %w", leaf.LeafIndex, err)
		}
	}
	return nil
}

// Consistency verifies that the log at length toSize with root toRoot is an
// append-only extension of the log at length fromSize with root fromRoot.
func Consistency(fromSize, toSize uint64, fromRoot, toRoot []byte, proof [][]byte) error {
	lv := NewLogVerifier()
	if err := lv.VerifyConsistencyProof(int64(fromSize), int64(toSize), fromRoot, toRoot, proof); err != nil {
		return fmt.Errorf("verify: consistency proof from %d to %d failed: %w", fromSize, toSize, err)
	}
	return nil
}
