package diarize

import "encoding/binary"

// Audio format constants for the capture pipeline. All PCM handed to this
// package is mono signed 16-bit little-endian at 16 kHz.
const (
	SampleRate     = 16000
	BytesPerSample = 2
)

// DecodeSamples converts s16le PCM bytes to float32 samples normalized to
// [-1, 1]. A trailing odd byte is ignored.
func DecodeSamples(pcm []byte) []float32 {
	n := len(pcm) / BytesPerSample
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}
