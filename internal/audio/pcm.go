package audio

import "encoding/binary"

// AppendBytes appends the frame as little-endian words to dst and returns the
// extended slice. The result is FrameBytes longer than dst.
func (f *Frame) AppendBytes(dst []byte) []byte {
	for _, w := range f {
		dst = binary.LittleEndian.AppendUint16(dst, w)
	}
	return dst
}

// Bytes returns the frame payload in a new slice.
func (f *Frame) Bytes() []byte {
	return f.AppendBytes(make([]byte, 0, FrameBytes))
}

// BytesToWords decodes little-endian unsigned words.
func BytesToWords(data []byte) []uint16 {
	words := make([]uint16, len(data)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return words
}

// Signed converts a biased unsigned word to two's-complement signed PCM.
func Signed(w uint16) int16 {
	return int16(w ^ SampleBias)
}

// SignedBytesInto rewrites a little-endian unsigned payload as signed s16le
// into dst. dst must have len >= len(src). Returns the used portion.
func SignedBytesInto(src, dst []byte) []byte {
	for i := 0; i+1 < len(src); i += 2 {
		dst[i] = src[i]
		dst[i+1] = src[i+1] ^ 0x80
	}
	return dst[:len(src)&^1]
}
