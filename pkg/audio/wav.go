package audio

import (
	"encoding/base64"
	"encoding/binary"
)

// EncodeWAV wraps s16le PCM in a canonical uncompressed RIFF/WAVE
// container.
func EncodeWAV(pcm []byte, f Format) []byte {
	const headerLen = 44
	out := make([]byte, headerLen+len(pcm))

	byteRate := f.BytesPerSecond()
	blockAlign := f.Channels * 2

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))

	copy(out[headerLen:], pcm)
	return out
}

// EncodePayload resamples captured PCM to the canonical mono 16 kHz format,
// wraps it in a WAV container, and base64-encodes it for transport to the
// speech model.
func EncodePayload(pcm []byte, src Format) (string, error) {
	converted, err := Resample(pcm, src, Target)
	if err != nil {
		return "", err
	}
	wav := EncodeWAV(converted, Target)
	return base64.StdEncoding.EncodeToString(wav), nil
}
