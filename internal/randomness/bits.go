package randomness

// hexBits expands a hex seed into individual bits, four per character,
// most significant bit first. Returns false for empty or non-hex input.
func hexBits(seed string) ([]uint8, bool) {
	if seed == "" {
		return nil, false
	}

	bits := make([]uint8, 0, len(seed)*4)
	for _, c := range seed {
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'a' && c <= 'f':
			v = int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = int(c-'A') + 10
		default:
			return nil, false
		}
		bits = append(bits, uint8(v>>3&1), uint8(v>>2&1), uint8(v>>1&1), uint8(v&1))
	}

	return bits, true
}

// concatBits joins per-seed bit rows into one stream, preserving seed order
func concatBits(rows [][]uint8) []uint8 {
	total := 0
	for _, row := range rows {
		total += len(row)
	}

	stream := make([]uint8, 0, total)
	for _, row := range rows {
		stream = append(stream, row...)
	}
	return stream
}

// countOnes returns the number of set bits in a stream
func countOnes(bits []uint8) int {
	ones := 0
	for _, b := range bits {
		ones += int(b)
	}
	return ones
}
