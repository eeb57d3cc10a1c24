// Package checksum fingerprints prompts for the usage ledger.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length in hex characters of a Prompt fingerprint.
const Size = 16

// Prompt returns a short hex fingerprint of prompt. Two runs over the same
// keyword sample and topic produce the same fingerprint.
func Prompt(prompt string) string {
	h := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(h[:Size/2])
}
