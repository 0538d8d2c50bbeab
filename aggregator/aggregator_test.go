package aggregator

import (
	"testing"

	"github.com/nlds-io/nlds/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detail(path string, size int64) common.PathDetail {
	return common.PathDetail{OriginalPath: path, Size: size}
}

func TestAggregate_SingleBinWhenUnderTargetSize(t *testing.T) {
	filelist := []common.PathDetail{detail("a", 10), detail("b", 10), detail("c", 10)}
	bins, err := Aggregate(filelist, 0, 1000)
	require.NoError(t, err)
	require.Len(t, bins, 1)
	assert.Len(t, bins[0], 3)
}

func TestAggregate_FiveBinsWhenMeanExceedsTarget(t *testing.T) {
	filelist := make([]common.PathDetail, 3)
	for i := range filelist {
		filelist[i] = detail("f", 2000)
	}
	bins, err := Aggregate(filelist, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, bins, specialCaseAggregationCount)
}

func TestAggregate_DerivesCountFromTotalOverTarget(t *testing.T) {
	filelist := make([]common.PathDetail, 10)
	for i := range filelist {
		filelist[i] = detail("f", 100)
	}
	// total 1000, target 200 -> 5 bins
	bins, err := Aggregate(filelist, 0, 200)
	require.NoError(t, err)
	assert.Len(t, bins, 5)
}

func TestAggregate_SmallestBinFirstPlacesLargestFileAlone(t *testing.T) {
	filelist := []common.PathDetail{
		detail("huge", 900),
		detail("a", 100),
		detail("b", 100),
		detail("c", 100),
	}
	bins, err := Aggregate(filelist, 2, 0)
	require.NoError(t, err)
	require.Len(t, bins, 2)

	var hugeBinLen int
	for _, b := range bins {
		for _, f := range b {
			if f.OriginalPath == "huge" {
				hugeBinLen = len(b)
			}
		}
	}
	assert.Equal(t, 1, hugeBinLen, "the largest file should land in its own bin since it alone outweighs any other single bin")
}

func TestAggregate_ExplicitCountOverridesDerivation(t *testing.T) {
	filelist := []common.PathDetail{detail("a", 1), detail("b", 1)}
	bins, err := Aggregate(filelist, 7, 1000)
	require.NoError(t, err)
	assert.Len(t, bins, 7)
}

func TestAggregate_EmptyFilelistRejectedWithError(t *testing.T) {
	bins, err := Aggregate(nil, 0, 1000)
	assert.Nil(t, bins)
	assert.ErrorIs(t, err, ErrEmptyFilelist)
}

func TestAggregationID_DeterministicForSameMembers(t *testing.T) {
	members := []common.PathDetail{detail("a.nc", 1), detail("b.nc", 2)}
	id1 := AggregationID(members)
	id2 := AggregationID(members)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 16)
}

func TestAggregationID_DiffersWhenMembershipChanges(t *testing.T) {
	a := []common.PathDetail{detail("a.nc", 1)}
	b := []common.PathDetail{detail("a.nc", 1), detail("b.nc", 2)}
	assert.NotEqual(t, AggregationID(a), AggregationID(b))
}
