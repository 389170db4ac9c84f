package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Booking references double as gateway order ids and PNRs, so the alphabet
// excludes nothing: ambiguity matters less than keeping six characters.
const refAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newReference returns a 6-character uppercase alphanumeric reference.
// Uniqueness is enforced by the unique index on the bookings collection;
// callers retry on a duplicate-key insert.
func newReference() string {
	out := make([]byte, 6)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(refAlphabet))))
		if err != nil {
			panic(fmt.Sprintf("reference generation failed: %v", err))
		}
		out[i] = refAlphabet[n.Int64()]
	}
	return string(out)
}
