package models

// Article is one semantic post/entry extracted from a page snapshot.
// Title is the only required field; everything else is best-effort.
type Article struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Date    string `json:"date,omitempty"`
	Content string `json:"content,omitempty"`
}

// Key returns the identity used to match the same article across two
// snapshots: the URL when present, the title otherwise. Exact string match,
// no normalization.
func (a Article) Key() string {
	if a.URL != "" {
		return a.URL
	}
	return a.Title
}

// ChangedArticle holds both content versions of an article whose identity
// key survived between snapshots but whose body text differs.
type ChangedArticle struct {
	Title           string `json:"title"`
	URL             string `json:"url,omitempty"`
	PreviousContent string `json:"previous_content"`
	CurrentContent  string `json:"current_content"`
}
