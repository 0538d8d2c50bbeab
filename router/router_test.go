package router

import (
	"testing"

	"github.com/nlds-io/nlds/common"
	"github.com/nlds-io/nlds/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_PutEntersSplitting(t *testing.T) {
	rk, state, err := Dispatch("nlds", ActionPut)
	require.NoError(t, err)
	assert.Equal(t, monitor.StateSplitting, state)
	assert.Equal(t, "nlds.index.start", rk.String())
}

func TestDispatch_GetEntersCatalogGetting(t *testing.T) {
	rk, state, err := Dispatch("nlds", ActionGet)
	require.NoError(t, err)
	assert.Equal(t, monitor.StateCatalogGetting, state)
	assert.Equal(t, "nlds.cat.start", rk.String())
}

func TestDispatch_ArchivePutEntersArchiveInit(t *testing.T) {
	rk, state, err := Dispatch("nlds", ActionArchivePut)
	require.NoError(t, err)
	assert.Equal(t, monitor.StateArchiveInit, state)
	assert.Equal(t, "nlds.archive.start", rk.String())
}

func TestDispatch_UnknownActionErrors(t *testing.T) {
	_, _, err := Dispatch("nlds", APIAction("not-a-real-action"))
	assert.Error(t, err)
}

func TestAssignSubID_StampsNonZeroUUID(t *testing.T) {
	details := common.Details{}
	subID := AssignSubID(&details)
	assert.NotEqual(t, "", details.SubID)
	assert.Equal(t, subID.String(), details.SubID)
}

func TestNextArchiveNext_CarriesArchivePutActionAndArchiveNextLabel(t *testing.T) {
	rk, msg := NextArchiveNext("nlds")
	assert.Equal(t, "nlds.cat.next", rk.String())
	assert.Equal(t, "archive-put", msg.Details.APIAction)
	assert.Equal(t, "archive-next", msg.Details.JobLabel)
	assert.Equal(t, monitor.StateArchiveInit.String(), msg.Details.State)
	assert.NotEmpty(t, msg.Details.SubID)

	var data common.FileListData
	require.NoError(t, common.DecodeData(msg, &data))
	assert.Empty(t, data.FileList)
}
