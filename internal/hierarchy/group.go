package hierarchy

import (
	"encoding/binary"

	"github.com/minio/highwayhash"
)

func groupBucket(key []byte, index, buckets int) (int, error) {
	hash, err := highwayhash.New64(key)
	if err != nil {
		return NoGroup, err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(index))
	if _, err := hash.Write(buf[:]); err != nil {
		return NoGroup, err
	}
	return int(hash.Sum64() % uint64(buckets)), nil
}
