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
	"bytes"
	"crypto/aes"
	"encoding/base64"
	"fmt"
)

// BlockFiller pads tokens to the AES block size in block mode.
const BlockFiller = '#'

// encodeBlock encrypts token block by block under a fresh random key.
// Tokens are filler padded, so a token that already ends in BlockFiller is
// refused.
func encodeBlock(token []byte, keySize int) (string, string, error) {
	if len(token) > 0 && token[len(token)-1] == BlockFiller {
		return "", "", ErrFillerCollision
	}

	key, err := RandomString(keySize)
	if err != nil {
		return "", "", err
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return "", "", err
	}

	padded := token
	if rem := len(token) % aes.BlockSize; rem != 0 {
		padded = append(append([]byte{}, token...), bytes.Repeat([]byte{BlockFiller}, aes.BlockSize-rem)...)
	}
	ciphertext := make([]byte, len(padded))
	for i := 0; i < len(padded); i += aes.BlockSize {
		block.Encrypt(ciphertext[i:i+aes.BlockSize], padded[i:i+aes.BlockSize])
	}
	return key, base64.StdEncoding.EncodeToString(ciphertext), nil
}

func decodeBlock(key []byte, value string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", tampered("value", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return "", tampered("value", fmt.Errorf("ciphertext length %d is not a multiple of %d", len(ciphertext), aes.BlockSize))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", tampered("key", err)
	}

	plaintext := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += aes.BlockSize {
		block.Decrypt(plaintext[i:i+aes.BlockSize], ciphertext[i:i+aes.BlockSize])
	}
	return string(bytes.TrimRight(plaintext, string(BlockFiller))), nil
}
