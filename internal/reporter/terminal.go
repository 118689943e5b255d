package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/five82/keyframes/internal/util"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu         sync.Mutex
	out        io.Writer
	errOut     io.Writer
	verbose    bool
	progress   *progressbar.ProgressBar
	maxPercent float32
	lastStage  string
	cyan       *color.Color
	green      *color.Color
	yellow     *color.Color
	red        *color.Color
	magenta    *color.Color
	bold       *color.Color
	faint      *color.Color
}

// NewTerminalReporter creates a terminal reporter on stdout and stderr.
func NewTerminalReporter(verbose bool) *TerminalReporter {
	return NewTerminalReporterWithWriters(os.Stdout, os.Stderr, verbose)
}

// NewTerminalReporterWithWriters creates a terminal reporter on custom writers.
func NewTerminalReporterWithWriters(out, errOut io.Writer, verbose bool) *TerminalReporter {
	return &TerminalReporter{
		out:     out,
		errOut:  errOut,
		verbose: verbose,
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
		faint:   color.New(color.Faint),
	}
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.maxPercent = 0
}

func (r *TerminalReporter) section(title string) {
	_, _ = fmt.Fprintln(r.out)
	_, _ = r.cyan.Fprintln(r.out, title)
}

// printLabel prints a bold label with fixed width padding followed by a value.
// Width is applied to the plain text before styling to keep alignment.
func (r *TerminalReporter) printLabel(width int, label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", width, label)
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) Hardware(summary HardwareSummary) {
	r.section("HARDWARE")
	r.printLabel(10, "Hostname:", summary.Hostname)
	r.printLabel(10, "Cores:", fmt.Sprint(summary.LogicalCores))
}

func (r *TerminalReporter) Initialization(summary InitializationSummary) {
	r.section("VIDEO")
	r.printLabel(11, "File:", summary.InputFile)
	r.printLabel(11, "Session:", summary.SessionID)
	r.printLabel(11, "Output:", summary.OutputDir)
	r.printLabel(11, "Duration:", summary.Duration)
	r.printLabel(11, "Resolution:", summary.Resolution)
	r.printLabel(11, "Frames:", fmt.Sprintf("%d @ %.3f fps", summary.FrameCount, summary.FrameRate))
}

func (r *TerminalReporter) StageProgress(update StageProgress) {
	r.mu.Lock()
	if r.lastStage != update.Stage {
		r.mu.Unlock()
		r.section(strings.ToUpper(update.Stage))
		r.mu.Lock()
		r.lastStage = update.Stage
	}
	r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.magenta.Sprint("›"), update.Message)
}

func (r *TerminalReporter) ExtractionConfig(summary ExtractionConfigSummary) {
	r.section("EXTRACTION")
	const w = 12
	r.printLabel(w, "Method:", summary.Method)
	r.printLabel(w, "Threshold:", fmt.Sprintf("%g", summary.Threshold))
	if summary.Method == "scene" {
		r.printLabel(w, "Min scene:", fmt.Sprintf("%d frames", summary.MinSceneLength))
	} else {
		r.printLabel(w, "Max frames:", fmt.Sprint(summary.MaxFrames))
		r.printLabel(w, "Sensitivity:", fmt.Sprintf("%g", summary.TransitionSensitivity))
	}
	r.printLabel(w, "Reference:", summary.Reference)
	r.printLabel(w, "Stride:", fmt.Sprintf("every %d frames", summary.Stride))
	if summary.Backend != "" {
		r.printLabel(w, "Decoder:", summary.Backend)
	}
}

func (r *TerminalReporter) ExtractionStarted(totalSamples uint64) {
	r.finishProgress()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = progressbar.NewOptions64(
		100,
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(r.errOut),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "Sampling [",
			BarEnd:        "]",
		}),
	)
}

func (r *TerminalReporter) ExtractionProgress(progress ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.progress == nil {
		return
	}

	clamped := min(max(progress.Percent, 0), 100)
	if clamped >= r.maxPercent {
		r.maxPercent = clamped
		_ = r.progress.Set64(int64(clamped))
	}
	r.progress.Describe(fmt.Sprintf("frame %d/%d, %d keyframes", progress.CurrentFrame, progress.TotalFrames, progress.Keyframes))
}

func (r *TerminalReporter) KeyframeSaved(event KeyframeEvent) {
	if !r.verbose {
		return
	}
	tag := ""
	if event.IsTransition {
		tag = r.yellow.Sprint(" transition")
	}
	if event.SceneID != nil {
		tag = r.faint.Sprintf(" scene %d", *event.SceneID)
	}
	r.mu.Lock()
	if r.progress != nil {
		_ = r.progress.Clear()
	}
	r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, "  %s #%d frame %d at %s (score %.2f)%s\n",
		r.magenta.Sprint("›"), event.Sequence, event.FrameNumber,
		util.FormatTimestamp(event.Timestamp), event.Score, tag)
}

func (r *TerminalReporter) ExtractionComplete(summary ExtractionOutcome) {
	r.finishProgress()

	r.section("RESULTS")
	r.printLabel(12, "Session:", r.bold.Sprint(summary.SessionID))
	r.printLabel(12, "Keyframes:", fmt.Sprintf("%d (%d sampled)", summary.Keyframes, summary.Sampled))
	if summary.Method == "scene" {
		r.printLabel(12, "Scenes:", fmt.Sprint(summary.Scenes))
	} else {
		r.printLabel(12, "Transitions:", fmt.Sprint(summary.Transitions))
	}
	if summary.Skipped > 0 {
		r.printLabel(12, "Skipped:", r.yellow.Sprintf("%d failed to save", summary.Skipped))
	}
	r.printLabel(12, "Time:", util.FormatDuration(summary.TotalTime.Seconds()))
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.bold.Sprint("Saved to"), r.green.Sprint(summary.OutputPath))
}

func (r *TerminalReporter) DedupeComplete(summary DedupeSummary) {
	r.section("DUPLICATES")
	r.printLabel(10, "Session:", summary.SessionID)
	r.printLabel(10, "Strategy:", fmt.Sprintf("%s (threshold %g)", summary.Strategy, summary.Threshold))
	r.printLabel(10, "Unique:", fmt.Sprint(summary.Unique))
	r.printLabel(10, "Found:", fmt.Sprint(len(summary.Duplicates)))
	for _, d := range summary.Duplicates {
		_, _ = fmt.Fprintf(r.out, "  - %s duplicates %s (%s)\n", d.ID, d.CanonicalID, util.FormatPercent(d.Similarity))
	}
	if summary.Removed > 0 {
		r.printLabel(10, "Removed:", r.green.Sprint(summary.Removed))
	}
	for _, f := range summary.Fallbacks {
		_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.faint.Sprint("fallback:"), f)
	}
	if summary.RateLimited {
		_, _ = r.yellow.Fprintln(r.out, "  Judge rate limit reached; retry later for judged results")
	}
}

func (r *TerminalReporter) Warning(message string) {
	_, _ = fmt.Fprintln(r.out)
	_, _ = r.yellow.Fprintf(r.out, "WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(r.errOut)
	_, _ = r.red.Fprintf(r.errOut, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(r.errOut, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(r.errOut, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(r.errOut, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) OperationComplete(message string) {
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "%s %s\n", color.New(color.FgGreen, color.Bold).Sprint("✓"), r.bold.Sprint(message))
}

func (r *TerminalReporter) BatchStarted(info BatchStartInfo) {
	r.section("BATCH")
	_, _ = fmt.Fprintf(r.out, "  Processing %d files -> %s (jobs %d)\n", info.TotalFiles, r.bold.Sprint(info.OutputDir), info.Jobs)
	for i, name := range info.FileList {
		_, _ = fmt.Fprintf(r.out, "  %d. %s\n", i+1, name)
	}
}

func (r *TerminalReporter) FileProgress(context FileProgressContext) {
	_, _ = fmt.Fprintf(r.out, "\nFile %s of %d: %s\n",
		r.bold.Sprint(context.CurrentFile),
		context.TotalFiles,
		context.File)
}

func (r *TerminalReporter) BatchComplete(summary BatchSummary) {
	r.section("BATCH SUMMARY")
	_, _ = fmt.Fprintf(r.out, "  %s\n", r.bold.Sprintf("%d of %d succeeded", summary.SuccessfulCount, summary.TotalFiles))
	_, _ = fmt.Fprintf(r.out, "  Keyframes: %d\n", summary.TotalKeyframes)
	_, _ = fmt.Fprintf(r.out, "  Time: %s\n", util.FormatDuration(summary.TotalDuration.Seconds()))

	for _, result := range summary.FileResults {
		if result.Err != "" {
			_, _ = fmt.Fprintf(r.out, "  - %s %s\n", result.Filename, r.red.Sprint(result.Err))
			continue
		}
		_, _ = fmt.Fprintf(r.out, "  - %s -> %s (%d keyframes)\n", result.Filename, result.SessionID, result.Keyframes)
	}
}

func (r *TerminalReporter) Verbose(message string) {
	if !r.verbose {
		return
	}
	_, _ = fmt.Fprintf(r.out, "  %s\n", r.faint.Sprint(message))
}
