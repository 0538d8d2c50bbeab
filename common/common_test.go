package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeData_RoundTripsWithoutCompression(t *testing.T) {
	msg := &Message{Details: Details{Compress: false}}
	payload := FileListData{FileList: []PathDetail{{OriginalPath: "/a/b", Size: 42}}}

	require.NoError(t, EncodeData(msg, payload))

	var out FileListData
	require.NoError(t, DecodeData(msg, &out))
	assert.Equal(t, payload, out)
}

func TestEncodeDecodeData_RoundTripsWithCompression(t *testing.T) {
	msg := &Message{Details: Details{Compress: true}}
	payload := FileListData{FileList: []PathDetail{{OriginalPath: "/c/d", Size: 7}}}

	require.NoError(t, EncodeData(msg, payload))

	var out FileListData
	require.NoError(t, DecodeData(msg, &out))
	assert.Equal(t, payload, out)
}

func TestAppendRoute_AccumulatesConsumerNames(t *testing.T) {
	var d Details
	d.AppendRoute("indexer")
	d.AppendRoute("catalog")
	assert.Equal(t, []string{"indexer", "catalog"}, d.Route)
}

func TestParseRoutingKey_RejectsWrongArity(t *testing.T) {
	_, err := ParseRoutingKey("nlds.cat")
	assert.ErrorIs(t, err, ErrInvalidRoutingKey)
}

func TestParseRoutingKey_RejectsUnrecognisedAction(t *testing.T) {
	_, err := ParseRoutingKey("nlds.cat.bogus")
	assert.ErrorIs(t, err, ErrInvalidRoutingKey)
}

func TestParseRoutingKey_AcceptsValidKey(t *testing.T) {
	rk, err := ParseRoutingKey("nlds.cat.start")
	require.NoError(t, err)
	assert.Equal(t, RoutingKey{Root: "nlds", Workflow: WorkflowCatalog, Action: ActionStart}, rk)
}

func TestRoutingKey_WithWorkflowAndActionPreserveRoot(t *testing.T) {
	rk := NewRoutingKey("nlds", WorkflowIndex, ActionStart)
	assert.Equal(t, "nlds.cat.start", rk.WithWorkflow(WorkflowCatalog).String())
	assert.Equal(t, "nlds.index.complete", rk.WithAction(ActionComplete).String())
}

func TestReasonOf_ExtractsReasonFromReasonedError(t *testing.T) {
	err := NewReasonedError(ReasonSizeMismatch, ErrEmptyInput)
	reason, ok := ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, ReasonSizeMismatch, reason)
}

func TestReasonOf_FalseForPlainError(t *testing.T) {
	_, ok := ReasonOf(ErrEmptyInput)
	assert.False(t, ok)
}

func TestMaskSecret_ShowsOnlyEnds(t *testing.T) {
	assert.Equal(t, "<not set>", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("short"))
	assert.Equal(t, "myve...y123", MaskSecret("myverylongsecretkey123"))
}
