package pe

import (
	"math"
)

// CalculateEntropy calculates Shannon entropy for a given data block.
// Entropy value ranges from 0 (completely uniform) to 8 (completely random).
func CalculateEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0.0
	}

	var freq [256]int
	for _, b := range data {
		freq[b]++
	}

	var entropy float64
	dataLen := float64(len(data))

	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / dataLen
		entropy -= p * math.Log2(p)
	}

	return entropy
}

// SectionData returns the on-disk bytes of s, clipped to the buffer.
func (img *Image) SectionData(s SectionHeader) []byte {
	start := uint64(s.PointerToRawData)
	size := uint64(len(img.buf))
	if start >= size {
		return nil
	}
	end := start + uint64(s.SizeOfRawData)
	if end > size {
		end = size
	}
	return img.buf[start:end]
}

// SectionEntropy is the entropy of the raw bytes of s.
func (img *Image) SectionEntropy(s SectionHeader) float64 {
	return CalculateEntropy(img.SectionData(s))
}
