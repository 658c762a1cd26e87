// Package metrics provides the observability hooks of the compile pipeline.
//
// Components receive a Recorder through dependency injection and default to NoopRecorder,
// so no call site needs a nil check:
//
//	h := handler.New(cfg, pipeline, handler.WithRecorder(metrics.NoopRecorder{}))
//
// When metrics are enabled the CLI swaps in a PrometheusRecorder and mounts HTTPHandler on
// the dev server at /metrics.
package metrics
