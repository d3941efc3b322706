// Package marker implements the 3-byte timestamp marker carried in the
// event stream.
//
// A marker is a MIDI song-position message: the status byte 0xF2 followed by
// two 7-bit data bytes holding the low 14 bits of the sender's tick counter,
// least significant group first. Because only 14 bits travel on the wire,
// delays are recovered modulo [Modulus]; a round trip longer than one modulus
// period (about 0.34s at 48kHz) aliases to a smaller delay.
package marker

const (
	// Tag is the status byte that identifies a marker.
	Tag byte = 0xF2
	// Size is the encoded length of a marker in bytes.
	Size = 3
	// Modulus is the wraparound period of the embedded tick value.
	Modulus = 1 << 14
	// Mask selects the tick bits that travel on the wire.
	Mask = Modulus - 1

	dataMask = 0x7F
)

// Encode returns the marker for the given tick counter.
func Encode(counter uint64) [Size]byte {
	return [Size]byte{
		Tag,
		byte(counter & dataMask),
		byte((counter >> 7) & dataMask),
	}
}

// Put writes the marker for counter into dst. It reports false and leaves dst
// untouched when dst is not exactly Size bytes long.
func Put(dst []byte, counter uint64) bool {
	if len(dst) != Size {
		return false
	}
	dst[0] = Tag
	dst[1] = byte(counter & dataMask)
	dst[2] = byte((counter >> 7) & dataMask)
	return true
}

// IsMarker reports whether payload has the size and tag of a marker.
func IsMarker(payload []byte) bool {
	return len(payload) == Size && payload[0] == Tag
}

// Value returns the 14-bit tick value embedded in a marker.
func Value(payload []byte) (uint64, bool) {
	if !IsMarker(payload) {
		return 0, false
	}
	return uint64(payload[2]&dataMask)<<7 | uint64(payload[1]&dataMask), true
}

// Decode returns the delay in ticks between the moment the marker was
// encoded and the moment it was observed, where counter is the receiver's
// tick counter at the start of the current period and offset the event's
// position within that period. Payloads that are not markers are rejected.
func Decode(payload []byte, counter uint64, offset uint32) (int64, bool) {
	embedded, ok := Value(payload)
	if !ok {
		return 0, false
	}
	now := (counter + uint64(offset)) & Mask
	return int64((Modulus + now - embedded) % Modulus), true
}
