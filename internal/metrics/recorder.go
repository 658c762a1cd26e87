package metrics

import "time"

// ResultLabel enumerates result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// BuildOutcomeLabel is the final status of a full build.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess  BuildOutcomeLabel = "success"
	BuildOutcomeFailed   BuildOutcomeLabel = "failed"
	BuildOutcomeCanceled BuildOutcomeLabel = "canceled"
)

// FetchSource records where a remote module came from.
type FetchSource string

const (
	FetchCached  FetchSource = "cached"  // already in the build directory
	FetchStore   FetchSource = "store"   // shared cache store
	FetchNetwork FetchSource = "network" // downloaded
	FetchFailed  FetchSource = "failed"
)

// Recorder defines observability hooks for builds, recompiles and the watch loop.
type Recorder interface {
	ObserveModuleCompile(kind string, d time.Duration, success bool)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	IncRecompile(result ResultLabel)
	IncRemoteFetch(source FetchSource)
	IncEventsDropped(reason string)
	SetModules(n int)
	SetLiveReloadClients(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveModuleCompile(string, time.Duration, bool) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)               {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)                {}
func (NoopRecorder) IncRecompile(ResultLabel)                         {}
func (NoopRecorder) IncRemoteFetch(FetchSource)                       {}
func (NoopRecorder) IncEventsDropped(string)                          {}
func (NoopRecorder) SetModules(int)                                   {}
func (NoopRecorder) SetLiveReloadClients(int)                         {}
