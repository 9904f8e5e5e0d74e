package engine

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// Checksum is the algorithm/value pair carried by an Upload-Checksum header
// (spec §4.1, write()).
type Checksum struct {
	Algorithm ChecksumAlgorithm
	Value     []byte
}

func newHasher(algo ChecksumAlgorithm) hash.Hash {
	switch algo {
	case ChecksumSHA1:
		return sha1.New()
	case ChecksumSHA256:
		return sha256.New()
	default:
		return md5.New()
	}
}

func checksumsEqual(a, b []byte) bool {
	return hmac.Equal(a, b)
}
