package reporter

// Reporter defines the interface for progress reporting.
type Reporter interface {
	Hardware(summary HardwareSummary)
	Initialization(summary InitializationSummary)
	StageProgress(update StageProgress)
	ExtractionConfig(summary ExtractionConfigSummary)
	ExtractionStarted(totalSamples uint64)
	ExtractionProgress(progress ProgressSnapshot)
	KeyframeSaved(event KeyframeEvent)
	ExtractionComplete(summary ExtractionOutcome)
	DedupeComplete(summary DedupeSummary)
	Warning(message string)
	Error(err ReporterError)
	OperationComplete(message string)
	BatchStarted(info BatchStartInfo)
	FileProgress(context FileProgressContext)
	BatchComplete(summary BatchSummary)
	Verbose(message string)
}

// NullReporter is a no-op reporter that discards all updates.
type NullReporter struct{}

func (NullReporter) Hardware(HardwareSummary)                 {}
func (NullReporter) Initialization(InitializationSummary)     {}
func (NullReporter) StageProgress(StageProgress)              {}
func (NullReporter) ExtractionConfig(ExtractionConfigSummary) {}
func (NullReporter) ExtractionStarted(uint64)                 {}
func (NullReporter) ExtractionProgress(ProgressSnapshot)      {}
func (NullReporter) KeyframeSaved(KeyframeEvent)              {}
func (NullReporter) ExtractionComplete(ExtractionOutcome)     {}
func (NullReporter) DedupeComplete(DedupeSummary)             {}
func (NullReporter) Warning(string)                           {}
func (NullReporter) Error(ReporterError)                      {}
func (NullReporter) OperationComplete(string)                 {}
func (NullReporter) BatchStarted(BatchStartInfo)              {}
func (NullReporter) FileProgress(FileProgressContext)         {}
func (NullReporter) BatchComplete(BatchSummary)               {}
func (NullReporter) Verbose(string)                           {}
