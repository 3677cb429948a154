package audio

import "math"

// RMS computes the root-mean-square level of float samples, 0.0 to 1.0.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Min(1, math.Sqrt(sum/float64(len(samples))))
}

// PCM16RMS computes the root-mean-square energy of 16-bit little-endian PCM.
func PCM16RMS(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		normalized := float64(sample) / pcmScale
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(samples))
}

// Peak returns the maximum absolute amplitude of float samples, clamped to 1.0.
func Peak(samples []float32) float64 {
	var maxAbs float64
	for _, s := range samples {
		if abs := math.Abs(float64(s)); abs > maxAbs {
			maxAbs = abs
		}
	}
	return math.Min(1, maxAbs)
}
