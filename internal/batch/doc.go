// Package batch creates groups of campaigns from one template and persona
// with different variable sets and executes them with bounded concurrency.
//
// A batch starts queued. Execute moves it to running, runs every member
// through the pipeline runner and finishes it as completed unless no member
// succeeded. Cancel is only valid while the batch is still queued; its
// members are failed with the "canceled" reason.
package batch
