// Package invidx builds and queries a disk-resident inverted index over a
// collection of plain-text documents.
//
// A build streams documents through tokenization, in-memory merging and
// flushing to temporary files, then hierarchically merges those temp files
// into one final index file (see Build). A query opens that file and
// answers term lookups with exact byte spans (see LoadedIndex).
package invidx
