package database

// Signal is a persisted signal row.
type Signal struct {
	ID                   int64
	EventID              string
	Scope                string
	Category             *string
	Title                string
	RawContent           *string
	Summary              *string
	StrategicImplication *string
	KeyInsights          []string
	SourceURL            string
	Publisher            *string
	PublishedAt          *string
	ScrapedAt            *string
	ConfidenceScore      *float64
	DataQualityScore     *float64
	ContentHash          *string
	ProcessingPipeline   *string
	SchemaVersion        *string
	AnalyzedBy           *string
	CreatedAt            *string
	UpdatedAt            *string
}

// Stats contains aggregate database statistics for the status surface.
type Stats struct {
	TotalSignals  int
	ThisWeek      int
	AvgConfidence float64
	ByScope       map[string]int
}

// PublisherStat is one row of the top-publishers query.
type PublisherStat struct {
	Publisher     string
	Count         int
	AvgConfidence float64
}
