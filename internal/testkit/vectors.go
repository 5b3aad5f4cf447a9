package testkit

// Published worked-example inputs.
const (
	// Epsilon100 is the first 100 bits of the binary expansion of π.
	Epsilon100 = "1100100100001111110110101010001000100001011010001100001000110100110001001100011001100010100010111000"

	// LongestRun128 is the 128-bit longest-run-of-ones example.
	LongestRun128 = "11001100000101010110110001001100111000000000001001001101010100010001001111010110100000001101011111001100111001101101100010110010"

	Excursions10      = "0110110101"
	Entropy10         = "0100110101"
	BlockFrequency10  = "0110011010"
	Serial10          = "0011011101"
	Rank20            = "01011001001010101101"
	NonOverlapping20  = "10100100101110010110"
	Universal20       = "01011010011101010111"
	BerlekampMassey13 = "1101011110001"
)
