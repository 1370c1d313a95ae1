package imagesort

import (
	"image"
	"sync"

	"github.com/corona10/goimagehash"
)

// dedupThreshold is the maximum Hamming distance between two dHash values
// below which images are considered perceptually identical.
const dedupThreshold = 10

// dedupCapacity bounds how many recent hashes are remembered.
const dedupCapacity = 256

// dedupIndex maps images to a canonical cache key so that re-uploads of the
// same picture (re-encoded, resized, renamed) reuse one model result.
// It is safe for concurrent use.
type dedupIndex struct {
	mu     sync.Mutex
	hashes []*goimagehash.ImageHash // oldest first
}

// key returns the cache key for img: the hash string of a perceptually
// identical image seen earlier, or img's own hash, which is remembered.
// Returns ok=false if hashing fails (graceful degradation: no caching).
func (d *dedupIndex) key(img image.Image) (string, bool) {
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, h := range d.hashes {
		dist, err := hash.Distance(h)
		if err == nil && dist < dedupThreshold {
			return h.ToString(), true
		}
	}

	d.hashes = append(d.hashes, hash)
	if len(d.hashes) > dedupCapacity {
		d.hashes = d.hashes[len(d.hashes)-dedupCapacity:]
	}
	return hash.ToString(), true
}
