package models

// Vector is a point in embedding space.
type Vector []float64

// FAQEntry is one record of the retrieval corpus.
type FAQEntry struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Question  string `json:"question" yaml:"question"`
	Answer    string `json:"answer" yaml:"answer"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
	Embedding Vector `json:"-" yaml:"-"`
}

// StoredFAQ is an FAQ as persisted by a corpus store. RawEmbedding is
// whatever the store decoded and is normalized on load.
type StoredFAQ struct {
	ID           string
	Question     string
	Answer       string
	Source       string
	RawEmbedding any
}

// MatchResult is a scored reference into the corpus.
type MatchResult struct {
	ID    string
	Score float64
}

// RetrievedFAQ joins a match with its entry.
type RetrievedFAQ struct {
	ID       string  `json:"id"`
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"`
}

// FAQSummary is what leaves the service about a retrieved FAQ.
type FAQSummary struct {
	Question string  `json:"question"`
	Score    float64 `json:"score"`
}

// ImportSummary reports the outcome of an import run.
type ImportSummary struct {
	Imported int `json:"imported"`
	Errors   int `json:"errors"`
}
