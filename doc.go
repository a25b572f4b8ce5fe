// Package multiparse converts line-oriented text files into JSON Lines by
// running a pluggable per-line parser over a streaming, multithreaded
// pipeline.
//
// The package is organized as follows:
//
// - source.go: transparent input layer (plain, gzip and zstd files behind
//   one reader)
// - pipeline.go: the streaming engine (line reader, worker pool, writer,
//   connected by bounded queues)
// - parser.go: the Parser contract and the explicit Registry
// - count.go: sequential line counter used for pre-run reporting
// - modules/webaccess, modules/csvrecord: the built-in parsers
//
// The pipeline is a producer/consumer chain:
//
//    file -> source -> line reader -> line queue -> workers -> blob queue -> writer
//
// Every stage streams, so memory usage is bounded by the queue capacities
// and the blob flush thresholds regardless of input size.  Workers batch
// their records into blobs before handing them to the writer, which keeps
// the queues coarse-grained and the writer sequential.  Output order across
// workers is not defined; run with one worker when order matters.
//
// The CLI utility is in the directory cmd/multiparse.
package multiparse
