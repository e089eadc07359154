package codec

import "github.com/wippyai/candid/idl"

// Limits bounds the resources a single message may claim while decoding.
type Limits struct {
	MaxTableSize int // type table entries
	MaxArgs      int // top-level values
	MaxFields    int // fields per record, cases per variant, methods per service
	MaxVecLen    int // elements per vector
	MaxTextSize  int // bytes per text or blob
	MaxDepth     int // value nesting
	MaxValues    int // values decoded or skipped per message
	MaxLEBSize   int // bytes per nat or int; 0 means unbounded
}

// DefaultLimits are applied by Decode.
var DefaultLimits = Limits{
	MaxTableSize: 10000,
	MaxArgs:      1000,
	MaxFields:    10000,
	MaxVecLen:    1 << 20,  // 1M elements
	MaxTextSize:  16 << 20, // 16 MB
	MaxDepth:     idl.MaxDepth,
	MaxValues:    1 << 21,
	MaxLEBSize:   1024,
}
