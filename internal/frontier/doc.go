// Package frontier holds the per-site crawl frontier: a min-priority queue of
// links waiting to be fetched, with constant-time membership checks.
//
// # Ordering
//
// Tasks are ordered by ascending priority. Tasks that share a priority leave
// the queue in insertion order; every task carries a monotonically increasing
// sequence number that breaks ties.
//
// # Membership
//
// A URL is either queued, visited, or unknown to the queue. RemoveMin moves a
// URL from queued to visited, so a URL that was handed to a worker can never
// be inserted again during the same crawl.
//
// # Capacity
//
// The queue has a soft capacity. Inserts beyond it are rejected silently: the
// caller sees false and moves on.
//
// # Concurrency
//
// LinkQueue is not safe for concurrent use. The crawl coordinator guards it
// with the same mutex that protects the crawl counters, so that claiming a
// task and committing its results are each a single transaction.
package frontier
