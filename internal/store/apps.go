package store

// App is a schema-owning module. Initialize creates the tables of every
// registered App in order and records one app row for each.
type App struct {
	Name    string
	Version int
	URL     string
	DDL     string
}

const docsURL = "https://docs.openedx.org/"

// ContentRegistry owns contexts, assets, content items, their hierarchy
// and their context bindings.
var ContentRegistry = App{
	Name:    "content-registry",
	Version: 1,
	URL:     docsURL,
	DDL: `
CREATE TABLE app (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	version INTEGER NOT NULL,
	url TEXT
);
CREATE UNIQUE INDEX idx_app_name ON app(name);

CREATE TABLE context (
	id INTEGER PRIMARY KEY,
	ext_id TEXT NOT NULL,
	type TEXT NOT NULL,
	version TEXT NOT NULL,
	title TEXT
);
CREATE UNIQUE INDEX idx_context_ext_id ON context(ext_id);

CREATE TABLE asset_file (
	id INTEGER PRIMARY KEY,
	file_path TEXT NOT NULL,
	size INTEGER NOT NULL,
	mime_type TEXT,
	content BLOB NOT NULL
);
CREATE UNIQUE INDEX idx_asset_file_path ON asset_file(file_path);

CREATE TABLE content_item (
	id INTEGER PRIMARY KEY,
	natural_key TEXT,
	type TEXT NOT NULL,
	title TEXT,
	definition BLOB
);
CREATE INDEX idx_content_item_natural_key ON content_item(natural_key);

-- order_num NULL: unordered membership. Non-NULL: position in a sequence.
CREATE TABLE content_item_child (
	parent_id INTEGER NOT NULL REFERENCES content_item(id),
	child_id INTEGER NOT NULL REFERENCES content_item(id),
	order_num INTEGER,
	CHECK (parent_id <> child_id)
);
CREATE UNIQUE INDEX idx_content_item_child_ordered
	ON content_item_child(parent_id, order_num) WHERE order_num IS NOT NULL;
CREATE UNIQUE INDEX idx_content_item_child_unordered
	ON content_item_child(parent_id, child_id) WHERE order_num IS NULL;
CREATE INDEX idx_content_item_child_parent ON content_item_child(parent_id, child_id, order_num);
CREATE INDEX idx_content_item_child_child ON content_item_child(child_id, parent_id);

CREATE TABLE context_item (
	context_id INTEGER NOT NULL REFERENCES context(id),
	item_id INTEGER NOT NULL REFERENCES content_item(id),
	natural_key TEXT NOT NULL,
	slug TEXT
);
CREATE UNIQUE INDEX idx_context_item_context_item ON context_item(context_id, item_id);
CREATE UNIQUE INDEX idx_context_item_natural_key ON context_item(context_id, natural_key);
CREATE UNIQUE INDEX idx_context_item_slug ON context_item(context_id, slug);
CREATE INDEX idx_context_item_item_id ON context_item(item_id);
CREATE INDEX idx_context_item_key ON context_item(natural_key);
`,
}

// CourseRegistry owns course-level attributes with no dedicated column.
var CourseRegistry = App{
	Name:    "course-registry",
	Version: 1,
	URL:     docsURL,
	DDL: `
CREATE TABLE course_config (
	context_id INTEGER NOT NULL REFERENCES context(id),
	key TEXT NOT NULL,
	value JSON
);
CREATE UNIQUE INDEX idx_course_config_context_key ON course_config(context_id, key);
`,
}

// Apps is the registry, in dependency order.
var Apps = []App{ContentRegistry, CourseRegistry}
