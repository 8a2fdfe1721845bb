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
	"errors"
	"fmt"
)

var (
	// ErrTampered matches every TamperedInputError with errors.Is.
	ErrTampered = errors.New("masked token has been tampered with")

	// ErrFillerCollision is returned by block mode Encode for tokens ending in
	// BlockFiller. Decode strips trailing filler, so such a token would not
	// survive the round trip.
	ErrFillerCollision = fmt.Errorf("token ends with block filler %q", BlockFiller)
)

// TamperedInputError reports a masked carrier that could not be decoded.
// Callers must reject the request. The message is deliberately generic; the
// failing stage is only reachable through Stage and Unwrap for logging.
type TamperedInputError struct {
	// Carrier names where the value came from, "form" or "header". It is
	// empty when Decode is called directly.
	Carrier string

	stage string
	err   error
}

func tampered(stage string, err error) *TamperedInputError {
	return &TamperedInputError{stage: stage, err: err}
}

func (e *TamperedInputError) Error() string {
	if e.Carrier == "" {
		return ErrTampered.Error()
	}
	return e.Carrier + ": " + ErrTampered.Error()
}

// Stage is the decode step that failed: split, key, value or decrypt.
func (e *TamperedInputError) Stage() string {
	return e.stage
}

func (e *TamperedInputError) Unwrap() error {
	return e.err
}

func (e *TamperedInputError) Is(target error) bool {
	return target == ErrTampered
}
