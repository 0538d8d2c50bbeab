// Package aggregator ports the original's nlds_processors/utils/
// aggregations.py smallest-bin-first packing algorithm to Go, and
// derives each aggregation's 16-hex identifier with SHAKE-256 the way
// S3ToTarfileStream._generate_filelist_hash does.
package aggregator

import (
	"sort"

	"github.com/nlds-io/nlds/common"
	"golang.org/x/crypto/sha3"
)

// ErrEmptyFilelist is returned by Aggregate when called with no files to
// bin (spec.md §4.4 property P4: empty input is rejected, not silently
// accepted as zero bins).
var ErrEmptyFilelist = common.ErrEmptyInput

// DefaultAggregationSize is the original's DEFAULT_AGGREGATION_SIZE
// (5 GiB), used when no target is configured (spec.md §4.6).
const DefaultAggregationSize int64 = 5 * (1 << 30)

// specialCaseAggregationCount is the original's fallback aggregation
// count when the mean file size already exceeds the target aggregation
// size — packing by count there would otherwise leave one file per
// aggregation, which is maximally inefficient for tape.
const specialCaseAggregationCount = 5

// Aggregate partitions filelist into target-sized bins using a
// smallest-bin-first greedy packing: files are visited largest-first and
// each dropped into whichever bin currently holds the least total bytes
// (spec.md §4.6).
//
// targetAggCount, if non-zero, fixes the bin count directly. Otherwise a
// count is derived from targetAggSize: a single bin if the whole filelist
// already fits under targetAggSize, specialCaseAggregationCount if the
// mean file size exceeds targetAggSize, or floor(total/targetAggSize)
// otherwise.
//
// Aggregate rejects an empty filelist with ErrEmptyFilelist rather than
// silently returning zero bins (spec.md §4.4 property P4).
func Aggregate(filelist []common.PathDetail, targetAggCount int, targetAggSize int64) ([][]common.PathDetail, error) {
	if len(filelist) == 0 {
		return nil, ErrEmptyFilelist
	}
	if targetAggSize <= 0 {
		targetAggSize = DefaultAggregationSize
	}

	if targetAggCount == 0 {
		var totalSize int64
		for _, f := range filelist {
			totalSize += f.Size
		}
		count := int64(len(filelist))
		meanSize := totalSize / count

		switch {
		case totalSize < targetAggSize:
			return [][]common.PathDetail{filelist}, nil
		case meanSize > targetAggSize:
			targetAggCount = specialCaseAggregationCount
		default:
			targetAggCount = int(totalSize / targetAggSize)
			if targetAggCount == 0 {
				targetAggCount = 1
			}
		}
	}

	aggregates := make([][]common.PathDetail, targetAggCount)
	sizes := make([]int64, targetAggCount)

	sorted := make([]common.PathDetail, len(filelist))
	copy(sorted, filelist)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Size > sorted[j].Size })

	for _, f := range sorted {
		idx := smallestBin(sizes)
		aggregates[idx] = append(aggregates[idx], f)
		sizes[idx] += f.Size
	}

	return aggregates, nil
}

func smallestBin(sizes []int64) int {
	best := 0
	for i, s := range sizes {
		if s < sizes[best] {
			best = i
		}
	}
	return best
}

// AggregationID derives a deterministic 16-hex-character identifier from
// the concatenation of every member's original path, mirroring
// S3ToTarfileStream._generate_filelist_hash (shake_256(...).hexdigest(8),
// i.e. 8 bytes = 16 hex characters). The hash breaks if a member is later
// removed from the aggregation, which is why aggregation membership is
// treated as immutable once written (spec.md §3).
func AggregationID(members []common.PathDetail) string {
	h := sha3.NewShake256()
	for _, m := range members {
		h.Write([]byte(m.OriginalPath))
	}
	out := make([]byte, 8)
	h.Read(out)
	return hexEncode(out)
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}
