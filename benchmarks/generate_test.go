package benchmarks

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
)

// sectionSpec describes one packed section of the synthetic asset blob
// served by the Source benchmarks.
type sectionSpec struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// The fixture layout is fixed so every benchmark run serves a blob of the
// same shape and size (about 9 KiB): a JSON manifest followed by
// length-prefixed binary sections, resembling a packed asset file rather
// than uniform noise.
var assetLayout = []sectionSpec{
	{Name: "palette", Size: 1 << 9},
	{Name: "frames", Size: 6 << 10},
	{Name: "audio", Size: 2 << 10},
	{Name: "metadata", Size: 3 << 8},
}

// generateSection produces size random bytes prefixed with a big-endian
// length header.
func generateSection(size int) ([]byte, error) {
	buf := make([]byte, 4+size)
	binary.BigEndian.PutUint32(buf[:4], uint32(size))
	if _, err := rand.Read(buf[4:]); err != nil {
		return nil, err
	}
	return buf, nil
}

// generateAsset assembles the synthetic blob: the marshalled manifest,
// then each section in layout order.
func generateAsset() ([]byte, error) {
	manifest, err := json.Marshal(assetLayout)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Write(manifest)
	for _, s := range assetLayout {
		sec, err := generateSection(s.Size)
		if err != nil {
			return nil, err
		}
		out.Write(sec)
	}
	return out.Bytes(), nil
}
