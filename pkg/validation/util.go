package validation

import "strconv"

// timeDecimal renders a block time as its decimal integer
// representation, used verbatim (no separator) as the coinbase hash
// prefix.
func timeDecimal(t int64) string {
	return strconv.FormatInt(t, 10)
}
