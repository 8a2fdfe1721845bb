// Copyright 2020 Mike Helmick
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package debreach

import (
	"crypto/rand"
	"math/big"
)

// Alphabet is the character set for pads and comments.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Bytes at or above this value are rejected so every character of Alphabet
// is equally likely.
const sampleLimit = 256 - 256%len(Alphabet)

// RandomString returns n characters drawn uniformly from Alphabet using
// crypto/rand.
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	out := make([]byte, 0, n)
	buffer := make([]byte, n+n/4+8)
	for len(out) < n {
		if _, err := rand.Read(buffer); err != nil {
			return "", err
		}
		for _, b := range buffer {
			if int(b) >= sampleLimit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// randomInt returns a uniform integer in [min, max].
func randomInt(min, max int) (int, error) {
	if max <= min {
		return min, nil
	}
	r, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return 0, err
	}
	return min + int(r.Int64()), nil
}

// xor combines s with pad, repeating pad as often as needed. pad must not be
// empty unless s is.
func xor(s, pad []byte) []byte {
	out := make([]byte, len(s))
	for i := range s {
		out[i] = s[i] ^ pad[i%len(pad)]
	}
	return out
}
