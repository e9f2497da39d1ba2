// Package domain holds the entity model of weft.
//
// A Request is the top-level unit of work a client submits.
// It decomposes into Transforms (nodes of a DAG), each of which executes
// through Processings delegated to external executors.
// Collections and Contents track data produced and consumed by Transforms.
// Conditions gate DAG progression, Commands and Events coordinate agents,
// Throttles gate admission per site, and HealthItems back advisory
// leader election.
//
// Types here are pure data plus status; behavior lives in the per-entity
// db interfaces and the agent loops.
package domain
