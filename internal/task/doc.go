// Package task runs units of work on a bounded pool of workers.
//
// A Queue buffers tasks and a Pool drains it with a fixed number of
// goroutines. Every task records its own outcome and exposes it through
// Status. Fetching submits one task per source, so a slow upstream only
// occupies one worker.
package task
