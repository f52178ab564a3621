// Package metrics holds the process-wide dNet counters (connections, bytes,
// messages, frames, chunks and errors) and a message size histogram, and exposes
// them in the Prometheus text format through WritePrometheus or a small http server.
//
// Per-connection statistics live on the connection itself (see base.Connection.Stats);
// the counters here aggregate over every connection of the process.
package metrics
