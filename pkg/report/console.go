package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/xhad/newsagent/internal/models"
)

const divider = "--------------------------------------------------"

type ConsoleConfig struct {
	Out     io.Writer
	Color   bool
	Verbose bool // also print skipped items
}

// Console writes human readable reports for each pipeline outcome.
type Console struct {
	out     io.Writer
	verbose bool

	alert   *color.Color
	heading *color.Color
	label   *color.Color
	muted   *color.Color
	failed  *color.Color
	success *color.Color
}

func NewConsole(config ConsoleConfig) *Console {
	if config.Out == nil {
		config.Out = os.Stdout
	}

	c := &Console{
		out:     config.Out,
		verbose: config.Verbose,
		alert:   color.New(color.FgRed, color.Bold),
		heading: color.New(color.FgCyan, color.Bold),
		label:   color.New(color.FgYellow),
		muted:   color.New(color.FgHiBlack),
		failed:  color.New(color.FgRed),
		success: color.New(color.FgGreen),
	}

	for _, col := range []*color.Color{c.alert, c.heading, c.label, c.muted, c.failed, c.success} {
		if config.Color {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}

	return c
}

func (c *Console) Alert(item models.NewsItem, analysis models.CombinedAnalysis, related []models.MemoryRecord) {
	c.alert.Fprintln(c.out, "\n🚨 🚨 🚨 HIGH IMPORTANCE ALERT 🚨 🚨 🚨")
	c.field("HEADLINE", item.Title)
	c.field("IMPORTANCE", fmt.Sprintf("%d/100", analysis.Score))
	c.field("CATEGORY", analysis.Category)
	c.block("SUMMARY", analysis.Summary)
	c.field("WHY IT MATTERS", analysis.WhyItMatters)
	c.related(related)
	fmt.Fprintln(c.out, divider)
}

func (c *Console) Normal(item models.NewsItem, analysis models.CombinedAnalysis, related []models.MemoryRecord) {
	c.heading.Fprintln(c.out, "\n📰 Normal News Report")
	c.field("Title", item.Title)
	c.field("Category", analysis.Category)
	c.field("Importance", fmt.Sprintf("%d/100", analysis.Score))
	c.block("Summary", analysis.Summary)
	c.related(related)
	fmt.Fprintln(c.out, divider)
}

func (c *Console) Skipped(item models.NewsItem) {
	if !c.verbose {
		return
	}
	c.muted.Fprintf(c.out, "Skipping already processed: %s\n", item.Title)
}

func (c *Console) Failed(item models.NewsItem, err error) {
	c.failed.Fprintf(c.out, "\n✗ Failed to analyze %q: %v\n", item.Title, err)
}

func (c *Console) Summary(summary models.RunSummary) {
	if summary.NewItems == 0 {
		fmt.Fprintln(c.out, "No new items found.")
		return
	}
	c.success.Fprintf(c.out, "\nProcessed %d new items.", summary.NewItems)
	fmt.Fprintf(c.out, " (%d alerts, %d normal, %d failed, %d skipped)\n",
		summary.Alerts, summary.Normal, summary.Failed, summary.Skipped)
}

func (c *Console) field(name, value string) {
	c.label.Fprintf(c.out, "%s: ", name)
	fmt.Fprintln(c.out, value)
}

func (c *Console) block(name, value string) {
	c.label.Fprintf(c.out, "%s: \n", name)
	fmt.Fprintln(c.out, strings.TrimSpace(value))
}

func (c *Console) related(records []models.MemoryRecord) {
	if len(records) == 0 {
		return
	}
	c.label.Fprintln(c.out, "RELATED:")
	for _, r := range records {
		c.muted.Fprintf(c.out, "  - %s (%d/100, similarity %.2f)\n", r.Title, r.Score, r.Similarity)
	}
}
