// Package frame defines the CAN wire frame layout and the DLC codec.
package frame

// fdBytes maps CAN-FD DLC values 9-15 to their payload byte counts.
var fdBytes = [16]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// Bytes returns the payload byte count encoded by dlc.
//
// For dlc <= 8 the byte count equals dlc in both builds. Classic CAN
// clamps dlc 9-15 to 8 bytes; CAN-FD remaps them per fdBytes.
func Bytes(dlc uint8, canFD bool) int {
	if dlc > 15 {
		dlc = 15
	}
	if dlc <= 8 {
		return int(dlc)
	}
	if !canFD {
		return 8
	}
	return fdBytes[dlc]
}

// DLC returns the smallest DLC value whose byte count covers nbytes.
func DLC(nbytes int, canFD bool) uint8 {
	if nbytes <= 8 {
		return uint8(nbytes)
	}
	if !canFD {
		return 8
	}
	for d := 9; d <= 15; d++ {
		if fdBytes[d] >= nbytes {
			return uint8(d)
		}
	}
	return 15
}
