package api

// App is a schema-owning module recorded in the store at init time.
type App struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
	URL     string `json:"url,omitempty"`
}

// Context is one course run. A single-course store has exactly one, with ID 1.
type Context struct {
	ID      int64   `json:"id"`
	ExtID   string  `json:"ext_id"` // canonical course key
	Type    string  `json:"type"`
	Version string  `json:"version"`
	Title   *string `json:"title,omitempty"`
}

// ConfigEntry is a course-level attribute that has no dedicated column.
type ConfigEntry struct {
	ContextID int64  `json:"context_id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// AssetFile is one static file stored verbatim.
type AssetFile struct {
	ID       int64   `json:"id"`
	FilePath string  `json:"file_path"` // relative to static/, slash separated
	Size     int64   `json:"size"`
	MimeType *string `json:"mime_type,omitempty"`
	Content  []byte  `json:"-"`
}

// ContentItem is a context-independent block.
type ContentItem struct {
	ID         int64   `json:"id"`
	NaturalKey string  `json:"natural_key"`
	Type       string  `json:"type"` // e.g. "xblock/html"
	Title      *string `json:"title,omitempty"`
	Definition []byte  `json:"-"`
}

// ContentItemChild is a parent to child edge between content items.
// A nil Order means unordered set membership.
type ContentItemChild struct {
	ParentID int64  `json:"parent_id"`
	ChildID  int64  `json:"child_id"`
	Order    *int64 `json:"order_num,omitempty"`
}

// ContextItem binds a ContentItem into a Context under a locator.
type ContextItem struct {
	ContextID  int64   `json:"context_id"`
	ItemID     int64   `json:"item_id"`
	NaturalKey string  `json:"natural_key"`
	Slug       *string `json:"slug,omitempty"`
}
