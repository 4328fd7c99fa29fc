package indexer

import "fmt"

// Range is an inclusive span of block numbers or token ids.
type Range struct {
	From uint64
	To   uint64
}

// SplitRange splits [from, to] into consecutive spans of at most batchSize.
func SplitRange(from, to, batchSize uint64) ([]Range, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("range end %d before start %d", to, from)
	}

	ranges := make([]Range, 0)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		ranges = append(ranges, Range{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
