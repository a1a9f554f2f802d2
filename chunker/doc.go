// Package chunker splits extracted document text into bounded, overlapping spans.
//
// Every policy shares the same window arithmetic: spans hold at most maxLength
// units and each span starts maxLength-overlap units after the previous one.
// Units are Unicode code points for the character policies and tokens for
// the token policy. Empty text always yields no chunks.
//
// # Policies
//
//   - Fixed: plain sliding window over code points (default)
//   - Rows: packs whole lines for tabular sources and never splits a row
//     unless the row alone exceeds maxLength
//   - Recursive: langchaingo's recursive character splitter, bounded by a
//     Fixed post-pass
//   - Tokens: sliding window over tiktoken tokens
//
// A Chunker picks Rows for tabular file types and its configured strategy for
// everything else.
package chunker
