/*
Package comm implements the replication transport between orset replicas.
Replicas periodically push their complete ORSet state to all peers over gRPC
(anti-entropy) and merge whatever they receive. Because merging is commutative,
associative and idempotent, delivery may be delayed, reordered or duplicated.
Vector clocks are only used to skip pushes a peer is known to have already.
*/
package comm
