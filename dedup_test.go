package imagesort

import (
	"image"
	"testing"
)

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := DecodeUpload(Upload{Name: "x.png", Data: data})
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestDedupIndex(t *testing.T) {
	t.Parallel()

	d := &dedupIndex{}
	up := decodePNG(t, gradientPNG(true))
	down := decodePNG(t, gradientPNG(false))

	k1, ok := d.key(up)
	if !ok {
		t.Fatal("hashing failed")
	}
	k2, _ := d.key(decodePNG(t, gradientPNG(true)))
	if k1 != k2 {
		t.Errorf("identical images got keys %q and %q", k1, k2)
	}

	k3, _ := d.key(down)
	if k3 == k1 {
		t.Error("opposite gradients share a key")
	}
	if len(d.hashes) != 2 {
		t.Errorf("remembered %d hashes, want 2", len(d.hashes))
	}
}
