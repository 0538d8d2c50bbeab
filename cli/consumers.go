package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nlds-io/nlds/archive"
	"github.com/nlds-io/nlds/catalog"
	"github.com/nlds-io/nlds/common"
	"github.com/nlds-io/nlds/indexer"
	"github.com/nlds-io/nlds/monitor"
	"github.com/nlds-io/nlds/objectstore"
	"github.com/nlds-io/nlds/rabbit"
	"github.com/nlds-io/nlds/router"
	"github.com/nlds-io/nlds/transfer"
	"github.com/spf13/cobra"
)

// publishFileList re-encodes payload as the outgoing message's data
// section, carrying the same details forward the way every consumer in
// spec.md §4.1 does when it hands a filelist to the next workflow step.
func publishFileList(ctx context.Context, pub *rabbit.Publisher, rk common.RoutingKey, details common.Details, payload common.FileListData) error {
	msg := &common.Message{Details: details, Type: common.MessageTypeStandard}
	if err := common.EncodeData(msg, payload); err != nil {
		return err
	}
	return pub.Publish(ctx, rk, msg)
}

// routerCmd is the workflow entry point: it receives a freshly submitted
// API action, assigns it a sub-id, and dispatches it to the first
// consumer in its workflow (spec.md §4.1/§4.7).
var routerCmd = &cobra.Command{
	Use:   "router",
	Short: "run the router consumer, dispatching submitted actions to their first workflow step",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := setup("nlds_q", "nlds_q", func(root string) []string { return []string{root + ".route.start"} })
		if err != nil {
			return err
		}
		root := b.cfg.RabbitMQ.Root

		return b.run(func(ctx context.Context, msg *common.Message) error {
			var data common.FileListData
			if err := common.DecodeData(msg, &data); err != nil {
				return err
			}

			rk, state, err := router.Dispatch(root, router.APIAction(msg.Details.APIAction))
			if err != nil {
				b.logger.WithError(err).Warn("unrecognised api_action, dropping")
				return nil
			}
			router.AssignSubID(&msg.Details)
			msg.Details.State = state.String()

			return publishFileList(ctx, b.publisher, rk, msg.Details, data)
		})
	},
}

// indexerCmd runs the filesystem-walking consumer, splitting oversized
// filelists back to itself and forwarding indexed batches to cataloguing
// (spec.md §4.3).
var indexerCmd = &cobra.Command{
	Use:   "indexer",
	Short: "run the indexer consumer, walking and classifying a filelist",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := setup("index_q", "index_q", func(root string) []string { return []string{root + ".index.start"} })
		if err != nil {
			return err
		}
		root := b.cfg.RabbitMQ.Root

		cfg := indexer.Config{
			FilelistMaxLength: b.cfg.Indexer.FilelistMaxLength,
			MessageThreshold:  b.cfg.Indexer.MessageThreshold,
			MaxRetries:        b.cfg.Indexer.MaxRetries,
		}

		return b.run(func(ctx context.Context, msg *common.Message) error {
			var data common.FileListData
			if err := common.DecodeData(msg, &data); err != nil {
				return err
			}

			var firstErr error
			publishBatch := func(kind indexer.BatchKind, items []common.PathDetail) {
				if firstErr != nil {
					return
				}
				batch := common.FileListData{FileList: items}
				switch kind {
				case indexer.BatchIndexed:
					rk := common.NewRoutingKey(root, common.WorkflowCatalog, common.ActionStart)
					firstErr = publishFileList(ctx, b.publisher, rk, msg.Details, batch)
				case indexer.BatchProblem:
					rk := common.NewRoutingKey(root, common.WorkflowIndex, common.ActionStart)
					firstErr = publishFileList(ctx, b.publisher, rk, msg.Details, batch)
				case indexer.BatchFailed:
					rk := common.NewRoutingKey(root, common.WorkflowIndex, common.ActionFailed)
					firstErr = publishFileList(ctx, b.publisher, rk, msg.Details, batch)
				}
			}

			// A filelist arriving larger than the configured maximum is
			// split back to this same queue in chunks rather than walked
			// directly, mirroring IndexerConsumer.split/.index's split.
			if cfg.FilelistMaxLength > 0 && len(data.FileList) > cfg.FilelistMaxLength {
				rk := common.NewRoutingKey(root, common.WorkflowIndex, common.ActionStart)
				indexer.Split(data.FileList, cfg.FilelistMaxLength, func(_ indexer.BatchKind, items []common.PathDetail) {
					if firstErr != nil {
						return
					}
					firstErr = publishFileList(ctx, b.publisher, rk, msg.Details, common.FileListData{FileList: items})
				})
				return firstErr
			}

			indexer.Index(cfg, data.FileList, publishBatch)
			return firstErr
		})
	},
}

// catalogPutCmd records a transaction's indexed files against a holding,
// creating the holding on first ingest (spec.md §4.5), then forwards the
// filelist to the transfer-put worker.
var catalogPutCmd = &cobra.Command{
	Use:   "catalog-put",
	Short: "run the catalog-put consumer, recording a holding's files",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := setup("catalog_q", "catalog_q", func(root string) []string { return []string{root + ".cat.start"} })
		if err != nil {
			return err
		}
		root := b.cfg.RabbitMQ.Root

		store, err := catalog.Open(b.cfg.Catalog.DSN)
		if err != nil {
			return fmt.Errorf("open catalog store: %w", err)
		}
		defer store.Close()

		return b.run(func(ctx context.Context, msg *common.Message) error {
			var data common.FileListData
			if err := common.DecodeData(msg, &data); err != nil {
				return err
			}

			holding, err := store.FindHolding(ctx, msg.Details.User, msg.Details.Group, 0, msg.Details.JobLabel)
			if err != nil {
				holding, err = store.NewHolding(ctx, msg.Details.User, msg.Details.Group, msg.Details.JobLabel, nil)
				if err != nil {
					return fmt.Errorf("create holding: %w", err)
				}
			}

			files := make([]catalog.File, 0, len(data.FileList))
			for _, item := range data.FileList {
				files = append(files, catalog.File{
					OriginalPath: item.OriginalPath,
					PathType:     catalog.PathType(item.PathType),
					LinkPath:     item.LinkPath,
					Size:         item.Size,
					UID:          item.UID,
					Mode:         item.Mode,
					AccessTime:   item.AccessTime,
					ObjectName:   item.ObjectName,
				})
			}
			if err := store.AddFiles(ctx, holding.ID, msg.Details.TransactionID, files); err != nil {
				return fmt.Errorf("add files to holding %d: %w", holding.ID, err)
			}

			rk := common.NewRoutingKey(root, common.WorkflowTransfer, common.ActionStart)
			return publishFileList(ctx, b.publisher, rk, msg.Details, data)
		})
	},
}

// transferPutCmd streams a transaction's files into its object-store
// bucket (spec.md §4.6).
var transferPutCmd = &cobra.Command{
	Use:   "transfer-put",
	Short: "run the transfer-put consumer, streaming files to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := setup("transfer_q", "transfer_q", func(root string) []string { return []string{root + ".tran.start"} })
		if err != nil {
			return err
		}
		root := b.cfg.RabbitMQ.Root

		ctx := context.Background()
		client, err := objectstore.New(ctx, objectstore.Config{
			Endpoint:  b.cfg.ObjectStore.Endpoint,
			AccessKey: b.cfg.ObjectStore.AccessKey,
			SecretKey: b.cfg.ObjectStore.SecretKey,
			Tenancy:   b.cfg.ObjectStore.Tenancy,
		})
		if err != nil {
			return fmt.Errorf("connect object store: %w", err)
		}
		tcfg := transfer.Config{ChunkSize: b.cfg.Transfer.ChunkSize}

		return b.run(func(ctx context.Context, msg *common.Message) error {
			var data common.FileListData
			if err := common.DecodeData(msg, &data); err != nil {
				return err
			}
			txnID, err := uuid.Parse(msg.Details.TransactionID)
			if err != nil {
				return fmt.Errorf("parse transaction id: %w", err)
			}

			results := transfer.Put(ctx, tcfg, client, txnID, data.FileList)
			out := make([]common.PathDetail, 0, len(results))
			for _, r := range results {
				item := r.Item
				if r.Err != nil {
					if reason, ok := common.ReasonOf(r.Err); ok {
						item.FailureReason = reason
					}
					item.RetryCount++
				}
				out = append(out, item)
			}

			rk := common.NewRoutingKey(root, common.WorkflowCatalog, common.ActionComplete)
			return publishFileList(ctx, b.publisher, rk, msg.Details, common.FileListData{FileList: out})
		})
	},
}

// transferGetCmd streams a transaction's files back out of object
// storage to a staging directory ahead of download (spec.md §4.6).
var transferGetCmd = &cobra.Command{
	Use:   "transfer-get",
	Short: "run the transfer-get consumer, staging files from object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := setup("transfer_get_q", "transfer_get_q", func(root string) []string { return []string{root + ".tran.next"} })
		if err != nil {
			return err
		}
		root := b.cfg.RabbitMQ.Root

		ctx := context.Background()
		client, err := objectstore.New(ctx, objectstore.Config{
			Endpoint:  b.cfg.ObjectStore.Endpoint,
			AccessKey: b.cfg.ObjectStore.AccessKey,
			SecretKey: b.cfg.ObjectStore.SecretKey,
			Tenancy:   b.cfg.ObjectStore.Tenancy,
		})
		if err != nil {
			return fmt.Errorf("connect object store: %w", err)
		}
		tcfg := transfer.Config{ChunkSize: b.cfg.Transfer.ChunkSize}

		return b.run(func(ctx context.Context, msg *common.Message) error {
			var data common.FileListData
			if err := common.DecodeData(msg, &data); err != nil {
				return err
			}
			txnID, err := uuid.Parse(msg.Details.TransactionID)
			if err != nil {
				return fmt.Errorf("parse transaction id: %w", err)
			}

			destDir := "/var/lib/nlds/staging/" + msg.Details.TransactionID
			results := transfer.Get(ctx, tcfg, client, txnID, destDir, data.FileList)
			out := make([]common.PathDetail, 0, len(results))
			for _, r := range results {
				item := r.Item
				if r.Err != nil {
					if reason, ok := common.ReasonOf(r.Err); ok {
						item.FailureReason = reason
					}
					item.RetryCount++
				}
				out = append(out, item)
			}

			rk := common.NewRoutingKey(root, common.WorkflowCatalog, common.ActionComplete)
			return publishFileList(ctx, b.publisher, rk, msg.Details, common.FileListData{FileList: out})
		})
	},
}

// archivePutCmd bins a transaction's files and writes them to tape-
// staged tar files (spec.md §4.7).
var archivePutCmd = &cobra.Command{
	Use:   "archive-put",
	Short: "run the archive-put consumer, binning and writing files to tape staging",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := setup("archive_q", "archive_q", func(root string) []string { return []string{root + ".archive.start"} })
		if err != nil {
			return err
		}
		root := b.cfg.RabbitMQ.Root

		ctx := context.Background()
		client, err := objectstore.New(ctx, objectstore.Config{
			Endpoint:  b.cfg.ObjectStore.Endpoint,
			AccessKey: b.cfg.ObjectStore.AccessKey,
			SecretKey: b.cfg.ObjectStore.SecretKey,
			Tenancy:   b.cfg.ObjectStore.Tenancy,
		})
		if err != nil {
			return fmt.Errorf("connect object store: %w", err)
		}
		acfg := archive.Config{StagingDir: b.cfg.Archive.StagingDir}

		store, err := catalog.Open(b.cfg.Catalog.DSN)
		if err != nil {
			return fmt.Errorf("open catalog store: %w", err)
		}
		defer store.Close()

		return b.run(func(ctx context.Context, msg *common.Message) error {
			var data common.FileListData
			if err := common.DecodeData(msg, &data); err != nil {
				return err
			}
			txnID, err := uuid.Parse(msg.Details.TransactionID)
			if err != nil {
				return fmt.Errorf("parse transaction id: %w", err)
			}
			bucket := objectstore.BucketName(txnID)

			var candidateBytes int64
			for _, item := range data.FileList {
				candidateBytes += item.Size
			}

			var out []common.PathDetail
			if err := store.ReserveQuota(ctx, msg.Details.Group, candidateBytes); err != nil {
				if !errors.Is(err, catalog.ErrQuotaExceeded) {
					return fmt.Errorf("reserve quota for group %s: %w", msg.Details.Group, err)
				}
				out = make([]common.PathDetail, len(data.FileList))
				for i, item := range data.FileList {
					item.FailureReason = common.ReasonQuotaExceeded
					item.RetryCount++
					out[i] = item
				}
			} else {
				bins := archive.Put(ctx, acfg, client, bucket, data.FileList)
				for _, bin := range bins {
					for _, member := range bin.Members {
						if bin.Err != nil {
							if reason, ok := common.ReasonOf(bin.Err); ok {
								member.FailureReason = reason
							}
							member.RetryCount++
						} else {
							member.ObjectName = bin.AggregationID
						}
						out = append(out, member)
					}
				}
			}

			rk := common.NewRoutingKey(root, common.WorkflowCatalog, common.ActionComplete)
			return publishFileList(ctx, b.publisher, rk, msg.Details, common.FileListData{FileList: out})
		})
	},
}

// monitorCmd listens on every workflow's state transitions, updating the
// sub-record each message names (spec.md §4.8).
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "run the monitor consumer, recording state transitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := setup("monitor_q", "monitor_q", func(root string) []string { return []string{root + ".*.*"} })
		if err != nil {
			return err
		}

		store, err := monitor.NewStore(context.Background(), b.cfg.Monitor.DSN)
		if err != nil {
			return fmt.Errorf("open monitor store: %w", err)
		}
		defer store.Close()

		return b.run(func(ctx context.Context, msg *common.Message) error {
			if msg.Details.SubID == "" || msg.Details.State == "" {
				return nil
			}
			subID, err := uuid.Parse(msg.Details.SubID)
			if err != nil {
				return nil
			}
			state, err := monitor.ParseState(msg.Details.State)
			if err != nil {
				return nil
			}
			return store.TransitionState(ctx, subID, state)
		})
	},
}

// logCmd drains LOG-typed messages onto the shared structured logger,
// the sink every other consumer's debug/info traffic is routed to
// (mirrors the original's dedicated logging consumer).
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "run the log consumer, recording LOG-typed messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := setup("log_q", "log_q", func(root string) []string { return []string{root + ".log.*"} })
		if err != nil {
			return err
		}

		return b.run(func(ctx context.Context, msg *common.Message) error {
			if msg.Type != common.MessageTypeLog {
				return nil
			}
			b.logger.WithFields(map[string]interface{}{
				"transaction_id": msg.Details.TransactionID,
				"route":          msg.Details.Route,
			}).Info(string(msg.Data))
			return nil
		})
	},
}
