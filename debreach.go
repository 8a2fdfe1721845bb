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

// Package debreach provides http middleware that blunts the BREACH attack
// against compressed responses.
//
// BREACH recovers secrets that are reflected into compressed responses by
// watching how the compressed size changes as the attacker injects guesses.
// Two independent defenses are offered:
//
// The Masker encodes a secret token (usually a CSRF token) with a fresh
// one-time pad each time it is rendered, so the bytes on the wire never
// repeat. Its Unmask middleware reverses the mask on incoming form fields and
// headers before the application sees them.
//
// The Inflator appends an HTML comment of random length and content to HTML
// responses so the response size varies from request to request.
package debreach
