package server

import (
	"crypto/sha1"

	"github.com/google/uuid"
)

// OfflineUUID derives the identifier an unauthenticated player gets from
// their name: the first 16 bytes of SHA-1("OfflinePlayer:"+username), stamped
// as a version 3, RFC 4122 variant UUID.
func OfflineUUID(username string) uuid.UUID {
	sum := sha1.Sum([]byte("OfflinePlayer:" + username))

	var id uuid.UUID
	copy(id[:], sum[:16])
	id[6] = (id[6] & 0x0F) | 0x30
	id[8] = (id[8] & 0x3F) | 0x80
	return id
}
