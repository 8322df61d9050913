package crawler

import "log/slog"

// NopProgress discards all pipeline events.
type NopProgress struct{}

func (NopProgress) PageFetched(string, int)             {}
func (NopProgress) ItemExtracted(*Record)               {}
func (NopProgress) ErrorOccurred(string, string, error) {}

// LogProgress reports pipeline events through structured logging.
type LogProgress struct {
	logger *slog.Logger
}

// NewLogProgress creates a Progress that writes to logger.
func NewLogProgress(logger *slog.Logger) *LogProgress {
	return &LogProgress{logger: logger}
}

func (p *LogProgress) PageFetched(pageURL string, itemCount int) {
	p.logger.Info("Page processed", "url", pageURL, "items", itemCount)
}

func (p *LogProgress) ItemExtracted(rec *Record) {
	attrs := []any{"url", rec.URL, "title", rec.Title}
	if rec.Price != nil {
		attrs = append(attrs, "price", *rec.Price, "currency", rec.Currency)
	}
	p.logger.Debug("Item extracted", attrs...)
}

func (p *LogProgress) ErrorOccurred(stage, url string, err error) {
	p.logger.Warn("Pipeline error", "stage", stage, "url", url, "error", err)
}
