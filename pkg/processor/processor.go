package processor

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/newsagent/internal/models"
)

type ProcessorConfig struct {
	MaxContentLength int // in runes, 0 keeps everything
	StripHTML        bool
	NoisePatterns    []string
}

// Processor normalizes feed items before they reach the models.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if len(config.NoisePatterns) == 0 {
		config.NoisePatterns = []string{
			"Continue reading",
			"Read more",
			"Subscribe now",
		}
	}

	return Processor{
		config: config,
	}
}

// Process returns a cleaned copy of item. ID, Link and Published are never touched.
func (p *Processor) Process(item models.NewsItem) models.NewsItem {
	item.Title = p.cleanText(item.Title)
	item.Summary = p.cleanText(item.Summary)

	if p.config.MaxContentLength > 0 {
		item.Summary = truncate(item.Summary, p.config.MaxContentLength)
	}

	return item
}

func (p *Processor) cleanText(text string) string {
	text = sanitizeUTF8(text)

	if p.config.StripHTML && strings.ContainsAny(text, "<&") {
		text = htmlToText(text)
	}

	for _, pattern := range p.config.NoisePatterns {
		text = strings.ReplaceAll(text, pattern, "")
	}

	// Replace multiple spaces with single space
	text = strings.Join(strings.Fields(text), " ")

	return strings.TrimSpace(text)
}

func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + fragment + "</body>"))
	if err != nil {
		return fragment
	}
	doc.Find("script, style").Remove()

	var parts []string
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max])) + "..."
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
