package utils

import "crypto/rand"

// Unambiguous alphabet: no 0/O or 1/I, since codes are shared verbally.
const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const referralCodeLength = 6

// GenerateReferralCode issues the short code printed on a client's share
// link. Uniqueness is enforced by the database, callers retry on collision.
func GenerateReferralCode() string {
	buf := make([]byte, referralCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}

	for i, b := range buf {
		buf[i] = referralCodeAlphabet[int(b)%len(referralCodeAlphabet)]
	}
	return string(buf)
}
