package service

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Room codes are short enough to read out loud; the alphabet drops 0/O/1/I
// to keep them unambiguous. Collisions are handled by the unique constraint
// on rooms.id plus retry, never by overwriting.
const (
	roomCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength = 5
)

func generateRoomCode() string {
	var sb strings.Builder
	for i := 0; i < roomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomCodeChars))))
		if err != nil {
			panic(err) // crypto/rand failure is unrecoverable
		}
		sb.WriteByte(roomCodeChars[n.Int64()])
	}
	return sb.String()
}

// normalizeCode uppercases a human-entered room code.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// randIndex draws uniformly from [0, n).
func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}
	return int(v.Int64())
}
