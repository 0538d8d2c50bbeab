// Package router implements the NLDS worker of spec.md §4.1/§4.7: the
// single entry point that turns a user's top-level API action into the
// first workflow message, assigning a fresh sub-id per sub-record,
// grounded on the original's nlds/routers/rabbit_router.py dispatch
// table and nlds_processors/archiver/send_archive_next.py's admin
// trigger.
package router

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/nlds-io/nlds/common"
	"github.com/nlds-io/nlds/monitor"
)

// APIAction names a top-level user request, matching spec.md §4.1's
// enumerated action set.
type APIAction string

const (
	ActionPut         APIAction = "put"
	ActionGet         APIAction = "get"
	ActionGetList     APIAction = "getlist"
	ActionDelete      APIAction = "delete"
	ActionArchivePut  APIAction = "archive-put"
	ActionArchiveNext APIAction = "archive-next"
)

// entryPoint names the workflow and action a given api_action enters
// the system at, and the monitor state that transition represents,
// mirroring the original's state machine's entry states per workflow
// (spec.md §4.2's ROUTING -> {SPLITTING, CATALOG_GETTING, ARCHIVE_INIT}
// fan-out).
type entryPoint struct {
	workflow common.Workflow
	state    monitor.State
}

var entryPoints = map[APIAction]entryPoint{
	ActionPut:         {common.WorkflowIndex, monitor.StateSplitting},
	ActionGet:         {common.WorkflowCatalog, monitor.StateCatalogGetting},
	ActionGetList:     {common.WorkflowCatalog, monitor.StateCatalogGetting},
	ActionDelete:      {common.WorkflowCatalog, monitor.StateCatalogDeleting},
	ActionArchivePut:  {common.WorkflowArchive, monitor.StateArchiveInit},
	ActionArchiveNext: {common.WorkflowArchive, monitor.StateArchiveInit},
}

// Dispatch resolves apiAction to the routing key the router must publish
// to next and the monitor state the new sub-record enters at, per
// spec.md §4.7's "first workflow message" rule. root is the exchange's
// configured root topic segment.
func Dispatch(root string, apiAction APIAction) (common.RoutingKey, monitor.State, error) {
	ep, ok := entryPoints[apiAction]
	if !ok {
		return common.RoutingKey{}, 0, fmt.Errorf("router: unrecognised api_action %q", apiAction)
	}
	return common.NewRoutingKey(root, ep.workflow, common.ActionStart), ep.state, nil
}

// AssignSubID mints a fresh sub-id for one independently retriable slice
// of a transaction and stamps it into details, mirroring the original
// router's per-sub-record UUID assignment on transaction entry.
func AssignSubID(details *common.Details) uuid.UUID {
	subID := uuid.New()
	details.SubID = subID.String()
	return subID
}

// NextArchiveNext builds the admin-triggered archive-next message the
// original's send_archive_next.py cron job publishes: an empty filelist
// addressed to the catalog's archive-next query, which the catalog
// consumer expands into real archive-put work for any holding due a tape
// copy (spec.md §4.7). api_action is carried as "archive-put" and the
// job is distinguished only by job_label "archive-next", matching the
// original's msg_dict exactly; user/group are placeholders the same way
// the original hardcodes "admin-placeholder".
func NextArchiveNext(root string) (common.RoutingKey, *common.Message) {
	details := common.Details{
		TransactionID: common.NewTransactionID(),
		User:          "admin-placeholder",
		Group:         "admin-placeholder",
		APIAction:     string(ActionArchivePut),
		JobLabel:      "archive-next",
		State:         monitor.StateArchiveInit.String(),
	}
	AssignSubID(&details)

	msg := &common.Message{Details: details, Type: common.MessageTypeStandard}
	_ = common.EncodeData(msg, common.FileListData{FileList: []common.PathDetail{}})

	rk := common.NewRoutingKey(root, common.WorkflowCatalog, common.ActionNext)
	return rk, msg
}
