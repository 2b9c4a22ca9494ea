package protocol

// CRC16 computes the frame checksum (CRC-16/CCITT as used by Klipper).
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc & 0xFF)
		b ^= b << 4
		w := uint16(b)
		crc = (w<<8 | crc>>8) ^ (w >> 4) ^ (w << 3)
	}
	return crc
}

// appendTrailer appends crc and the sync byte to frame.
func appendTrailer(out OutputBuffer, crc uint16) {
	out.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}
