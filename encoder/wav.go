package encoder

import (
	"encoding/binary"
	"sync"
	"time"
)

const wavHeaderSize = 44

// WavEncoder buffers raw PCM and prepends a RIFF header on Bytes.
// Uncompressed, so only worth it when the upload path is local or fast.
type WavEncoder struct {
	pcm         []byte
	totalFrames uint64
	encodeTime  time.Duration
	mu          sync.Mutex
}

func NewWav() *WavEncoder {
	return &WavEncoder{}
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	off := len(e.pcm)
	e.pcm = append(e.pcm, make([]byte, len(block)*2)...)
	for i, s := range block {
		binary.LittleEndian.PutUint16(e.pcm[off+i*2:], uint16(s))
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	return nil
}

func (e *WavEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]byte, wavHeaderSize+len(e.pcm))
	writeWavHeader(out, len(e.pcm))
	copy(out[wavHeaderSize:], e.pcm)
	return out
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *WavEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *WavEncoder) EncodeTime() time.Duration {
	return e.encodeTime
}

func writeWavHeader(dst []byte, dataLen int) {
	const (
		fmtChunkSize = 16
		pcmFormat    = 1
	)
	byteRate := SampleRate * Channels * BitsPerSample / 8
	blockAlign := Channels * BitsPerSample / 8

	copy(dst[0:], "RIFF")
	binary.LittleEndian.PutUint32(dst[4:], uint32(36+dataLen))
	copy(dst[8:], "WAVE")
	copy(dst[12:], "fmt ")
	binary.LittleEndian.PutUint32(dst[16:], fmtChunkSize)
	binary.LittleEndian.PutUint16(dst[20:], pcmFormat)
	binary.LittleEndian.PutUint16(dst[22:], Channels)
	binary.LittleEndian.PutUint32(dst[24:], SampleRate)
	binary.LittleEndian.PutUint32(dst[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(dst[32:], uint16(blockAlign))
	copy(dst[36:], "data")
	binary.LittleEndian.PutUint32(dst[40:], uint32(dataLen))
}
