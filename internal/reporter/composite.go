package reporter

// CompositeReporter fans out events to multiple reporters.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter creates a composite reporter.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (c *CompositeReporter) each(fn func(Reporter)) {
	for _, r := range c.reporters {
		fn(r)
	}
}

func (c *CompositeReporter) Hardware(summary HardwareSummary) {
	c.each(func(r Reporter) { r.Hardware(summary) })
}

func (c *CompositeReporter) Initialization(summary InitializationSummary) {
	c.each(func(r Reporter) { r.Initialization(summary) })
}

func (c *CompositeReporter) StageProgress(update StageProgress) {
	c.each(func(r Reporter) { r.StageProgress(update) })
}

func (c *CompositeReporter) ExtractionConfig(summary ExtractionConfigSummary) {
	c.each(func(r Reporter) { r.ExtractionConfig(summary) })
}

func (c *CompositeReporter) ExtractionStarted(totalSamples uint64) {
	c.each(func(r Reporter) { r.ExtractionStarted(totalSamples) })
}

func (c *CompositeReporter) ExtractionProgress(progress ProgressSnapshot) {
	c.each(func(r Reporter) { r.ExtractionProgress(progress) })
}

func (c *CompositeReporter) KeyframeSaved(event KeyframeEvent) {
	c.each(func(r Reporter) { r.KeyframeSaved(event) })
}

func (c *CompositeReporter) ExtractionComplete(summary ExtractionOutcome) {
	c.each(func(r Reporter) { r.ExtractionComplete(summary) })
}

func (c *CompositeReporter) DedupeComplete(summary DedupeSummary) {
	c.each(func(r Reporter) { r.DedupeComplete(summary) })
}

func (c *CompositeReporter) Warning(message string) {
	c.each(func(r Reporter) { r.Warning(message) })
}

func (c *CompositeReporter) Error(err ReporterError) {
	c.each(func(r Reporter) { r.Error(err) })
}

func (c *CompositeReporter) OperationComplete(message string) {
	c.each(func(r Reporter) { r.OperationComplete(message) })
}

func (c *CompositeReporter) BatchStarted(info BatchStartInfo) {
	c.each(func(r Reporter) { r.BatchStarted(info) })
}

func (c *CompositeReporter) FileProgress(context FileProgressContext) {
	c.each(func(r Reporter) { r.FileProgress(context) })
}

func (c *CompositeReporter) BatchComplete(summary BatchSummary) {
	c.each(func(r Reporter) { r.BatchComplete(summary) })
}

func (c *CompositeReporter) Verbose(message string) {
	c.each(func(r Reporter) { r.Verbose(message) })
}
