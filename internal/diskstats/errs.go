package diskstats

import "errors"

var (
	// ErrShortStat indicates the device stat file had fewer fields than expected.
	ErrShortStat = errors.New("diskstats: short stat line")

	// ErrMalformedStat indicates a counter field could not be parsed.
	ErrMalformedStat = errors.New("diskstats: malformed stat line")
)
