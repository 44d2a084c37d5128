package arbor

// Page is the list envelope every Arbor collection endpoint returns.
type Page[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Entity is a managed content entity (document, article, dataset).
type Entity struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Status      string   `json:"status"`
	Favorite    bool     `json:"favorite"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	Description string   `json:"description"`
}

// FacetValue is one value of a classification facet attached to an entity.
type FacetValue struct {
	ID        string `json:"id"`
	EntityID  string `json:"entity_id"`
	FacetKey  string `json:"facet_key"`
	Value     string `json:"value"`
	Confirmed bool   `json:"confirmed"`
	UpdatedAt string `json:"updated_at"`
}

// Summary is a custom LLM summary configured for an entity.
type Summary struct {
	ID         string `json:"id"`
	EntityID   string `json:"entity_id"`
	Title      string `json:"title"`
	Prompt     string `json:"prompt"`
	Result     string `json:"result"`
	Status     string `json:"status"` // idle, running, done, failed
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
	UpdatedAt  string `json:"updated_at"`
}

// Source is a crawl source feeding the Arbor ingest pipeline.
type Source struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Enabled     bool   `json:"enabled"`
	LastCrawlAt string `json:"last_crawl_at"`
	LastStatus  string `json:"last_status"`
	UpdatedAt   string `json:"updated_at"`
}

// Notification is an admin-facing event delivered to the console.
type Notification struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// UnreadCountResponse mirrors /api/notifications/unread_count.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// UsageStat is one bucket of LLM usage reported by /api/usage.
type UsageStat struct {
	Day          string `json:"day"`
	Model        string `json:"model"`
	Requests     int    `json:"requests"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}
