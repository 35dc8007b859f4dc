// Package cascade provides the blackout cascade engine.
//
// # Reading Guide
//
// Start with these files:
//   - adapter.go: the collaborator interfaces (Topology, Solver, Results, SolverFactory)
//   - removal.go: the two branch removal heuristics
//   - controller.go: the cascade loop, single-step mode and cancellation
//   - log.go: the append-only per-step event log and its report views
//
// # Architecture
//
// The cascade package owns the interfaces; implementations live in sub-packages:
//   - cascade/grid/: reference DC power flow, Latin hypercube sampling and island compilation
//   - cascade/metrics/: Prometheus collector implementing Observer
//   - cascade/store/: SQLite persistence for cascade logs
//
// A Controller drives one run at a time. Each iteration solves the network,
// disables branches through a removal heuristic, recompiles the islands and
// stops once the island count passes the configured tolerance. Cancellation is
// cooperative and is only observed between iterations, so an in-flight solve
// always completes.
package cascade
