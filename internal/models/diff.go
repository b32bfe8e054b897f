package models

// DiffResult - the outcome of comparing two snapshots of one blog.
// Built once per (blog, run date), immutable afterwards; it exclusively
// owns its article slices.
type DiffResult struct {
	URL          string `json:"url"`
	Domain       string `json:"domain"`
	BlogName     string `json:"blog_name,omitempty"`
	BlogURL      string `json:"blog_url,omitempty"`
	Category     string `json:"category,omitempty"`
	CurrentDate  string `json:"current_date"`
	PreviousDate string `json:"previous_date,omitempty"` // empty when no prior snapshot exists

	HasChanges      bool             `json:"has_changes"`
	NewArticles     []Article        `json:"new_articles"`
	ChangedArticles []ChangedArticle `json:"changed_articles"`
	RemovedArticles []Article        `json:"removed_articles"`
}
