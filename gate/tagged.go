package gate

import "math"

// Tagged value encodings of the special JavaScript values.
const (
	TaggedHole      int64 = 0x05
	TaggedNull      int64 = 0x02
	TaggedFalse     int64 = 0x06
	TaggedTrue      int64 = 0x07
	TaggedUndefined int64 = 0x0a
	TaggedException int64 = 0x12

	doubleEncodeOffset = 1 << 48
	intTag             = -1 << 48
)

// TaggedDouble encodes f as a tagged value.
func TaggedDouble(f float64) int64 {
	return int64(math.Float64bits(f)) + doubleEncodeOffset
}

// TaggedInt encodes i as a tagged value.
func TaggedInt(i int32) int64 {
	return intTag | int64(uint32(i))
}
