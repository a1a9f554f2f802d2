// Package bolt implements storage.VectorIndex on a single bbolt file.
//
// It trades Badger's write throughput for a one-file layout that is easy to
// copy around, and gets per-call atomicity from bbolt's serialized writers.
package bolt
