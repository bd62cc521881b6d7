package processor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xhad/newsagent/internal/models"
	"github.com/xhad/newsagent/pkg/processor"
)

func TestProcessor_Process(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		StripHTML: true,
	})

	item := models.NewsItem{
		ID:        "n1",
		Title:     "  Fed   holds rates ",
		Link:      "https://example.com/fed",
		Published: "Mon, 01 Jan 2024 10:00:00 GMT",
		Summary:   `<p>The Fed <b>held</b> rates.</p><script>track()</script><p>Markets rallied.</p> <a href="#">Read more</a>`,
	}

	got := p.Process(item)

	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, item.Link, got.Link)
	assert.Equal(t, item.Published, got.Published)
	assert.Equal(t, "Fed holds rates", got.Title)
	assert.Equal(t, "The Fed held rates. Markets rallied.", got.Summary)
}

func TestProcessor_Truncate(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{MaxContentLength: 10})

	got := p.Process(models.NewsItem{Summary: "Ölpreis steigt deutlich an"})
	assert.Equal(t, "Ölpreis st...", got.Summary)

	got = p.Process(models.NewsItem{Summary: "short"})
	assert.Equal(t, "short", got.Summary)
}

func TestProcessor_InvalidUTF8(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	got := p.Process(models.NewsItem{Title: "Bad \xff byte"})
	assert.Equal(t, "Bad byte", got.Title)
}

func TestProcessor_PlainTextUntouched(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{StripHTML: true})

	got := p.Process(models.NewsItem{Summary: "Oil rises 3% as supply tightens"})
	assert.Equal(t, "Oil rises 3% as supply tightens", got.Summary)
}
