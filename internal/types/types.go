package types

// Assessment represents a single entry in the SHL product catalog.
// Records are immutable once loaded.
type Assessment struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	URL             string `json:"url"`
	RemoteTesting   bool   `json:"remoteTesting"`
	AdaptiveSupport bool   `json:"adaptiveSupport"`
	Duration        string `json:"duration"`
	TestType        string `json:"testType"`
	Description     string `json:"description,omitempty"`
}

// RecommendInput represents a recommendation request
type RecommendInput struct {
	Text        string `json:"text"`
	MaxResults  int    `json:"maxResults,omitempty"`
	MaxDuration int    `json:"maxDuration,omitempty"`
}

// Recommendation is a single ranked catalog entry with its similarity score
type Recommendation struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	URL             string  `json:"url"`
	RemoteTesting   bool    `json:"remoteTesting"`
	AdaptiveSupport bool    `json:"adaptiveSupport"`
	Duration        string  `json:"duration"`
	TestType        string  `json:"testType"`
	Score           float64 `json:"score"`
}

// RecommendOutput represents the ranked recommendation list, best match first
type RecommendOutput struct {
	Recommendations []Recommendation `json:"recommendations"`
}
