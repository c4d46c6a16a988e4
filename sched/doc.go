// Package sched queues component state updates and coalesces them into
// flushes at explicit turn boundaries.
//
// A turn is one synchronous span of execution, such as a task run by a
// [Loop] or the work between two calls to [Manual.Turn]. Every update
// enqueued during a turn is folded by a single flush run at the end of that
// turn. [Scheduler.WithBatch] scopes defer flushing until the outermost scope
// exits.
package sched
