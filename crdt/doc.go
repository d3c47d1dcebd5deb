/*
Package crdt implements the state-based observed-removed set (ORSet) that
orset replicas converge on, together with an operation-based delta message
for shipping single updates.

CAUTION! Consider these two requirements:
* Every tag passed to Add must be globally unique per add operation, across
  all replicas. This package does not(!) check that. Reusing a tag silently
  corrupts membership: a Remove of one element may tombstone the reused tag
  of another logical add.
* Access to the functions this package provides is expected to be synchronized
  explicitly by some outside measures, e.g. by wrapping calls to this package
  with a mutex lock if concurrent access is possible. This package does not(!)
  synchronize access by itself.

The ORSet implementation of this package is a practical derivation from its
specification by Shapiro, Preguiça, Baquero and Zawirski, available under:
https://hal.inria.fr/inria-00555588/document
*/
package crdt
