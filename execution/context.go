// Package execution runs a plan tree as a streaming dataflow. Every
// operator is a goroutine communicating over Result channels, grounded on
// couchbase-query/execution's itemChannel/stopChannel pipeline
// (execution/base.go's runConsumer), adapted so that cancellation is
// driven synchronously by checkpoint.PlanCheckpoint's Stop/Done tasks
// rather than couchbase's own best-effort stop propagation: the
// split-bound protocol requires cancellation to complete, in topological
// order, before the checkpoint can be read.
package execution

import (
	"context"

	"github.com/TheBenCollins/fdb-document-layer/checkpoint"
	"github.com/TheBenCollins/fdb-document-layer/config"
	"github.com/TheBenCollins/fdb-document-layer/document"
	"github.com/TheBenCollins/fdb-document-layer/kv"
	"github.com/TheBenCollins/fdb-document-layer/logging"
	"github.com/TheBenCollins/fdb-document-layer/metrics"
)

// Context bundles everything an operator needs beyond its own plan node:
// the parent Go context (external cancellation / deadlines), the live
// transaction, the checkpoint, engine configuration, and metrics.
type Context struct {
	Ctx     context.Context
	Txn     kv.Transaction
	Check   *checkpoint.PlanCheckpoint
	Config  config.Config
	Metrics *metrics.Registry
	Coll    document.Collection
}

func (c *Context) withCheckpoint(cp *checkpoint.PlanCheckpoint) *Context {
	cx := *c
	cx.Check = cp
	return &cx
}

func (c *Context) log(msg string, pairs ...logging.Pair) {
	logging.Debugp(msg, pairs...)
}
