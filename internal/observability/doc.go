// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability provides the structured logger and Prometheus metrics
// shared by the pipeline components.
//
// Components receive a zerolog.Logger by value and enrich it with the helpers
// in this package (WithBatchContext, WithPaperContext, WithStageContext) so
// every line of a paper's analysis carries its identifiers. Metrics live in a
// private registry owned by a Metrics value; nothing is registered globally.
package observability
