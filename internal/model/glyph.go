package model

import (
	"math"
	"strings"
)

const (
	blockFilled = "■"
	blockEmpty  = "□"
	blockCount  = 5
)

// ConfidenceBlocks renders a confidence score as five blocks, round(c*5)
// of them filled.
func ConfidenceBlocks(c float64) string {
	n := int(math.Round(c * blockCount))
	n = max(0, min(blockCount, n))
	return strings.Repeat(blockFilled, n) + strings.Repeat(blockEmpty, blockCount-n)
}
