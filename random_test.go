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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRandomString(t *testing.T) {
	d, err := RandomString(0)
	if err != nil {
		t.Fatal(err)
	}
	if d != "" {
		t.Fatalf("expected empty string, got: %q", d)
	}

	for _, n := range []int{1, 16, 62, 1000} {
		d, err := RandomString(n)
		if err != nil {
			t.Fatal(err)
		}
		if len(d) != n {
			t.Errorf("RandomString(%d) length = %d", n, len(d))
		}
		for _, c := range d {
			if !strings.ContainsRune(Alphabet, c) {
				t.Fatalf("RandomString(%d) = %q has %q outside the alphabet", n, d, c)
			}
		}
	}
}

func TestRandomStringCoversAlphabet(t *testing.T) {
	d, err := RandomString(10000)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range Alphabet {
		if !strings.ContainsRune(d, c) {
			t.Errorf("character %q never produced", c)
		}
	}
}

func TestRandomInt(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 2000; i++ {
		n, err := randomInt(12, 24)
		if err != nil {
			t.Fatal(err)
		}
		if n < 12 || n > 24 {
			t.Fatalf("randomInt(12, 24) = %d", n)
		}
		seen[n] = true
	}
	if !seen[12] || !seen[24] {
		t.Errorf("range ends not reached: %v", seen)
	}

	if n, _ := randomInt(5, 5); n != 5 {
		t.Errorf("randomInt(5, 5) = %d", n)
	}
}

func TestXor(t *testing.T) {
	s := []byte("abc123")
	pad := []byte{0x01, 0x02}

	got := xor(s, pad)
	want := []byte{'a' ^ 1, 'b' ^ 2, 'c' ^ 1, '1' ^ 2, '2' ^ 1, '3' ^ 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(s, xor(got, pad)); diff != "" {
		t.Errorf("xor is not its own inverse (-want, +got):\n%s", diff)
	}
	if got := xor(nil, nil); len(got) != 0 {
		t.Errorf("xor(nil, nil) = %v", got)
	}
}
