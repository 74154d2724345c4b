package database

// The partial unique index on image_versions makes two current versions of
// one image unrepresentable; pointer moves demote before they promote.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    username TEXT PRIMARY KEY,
    object_base_path TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS images (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    extension TEXT NOT NULL DEFAULT 'jpg',
    content_type INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    username TEXT NOT NULL REFERENCES users (username),
    UNIQUE (name, username)
);

CREATE TABLE IF NOT EXISTS image_versions (
    image_id TEXT NOT NULL REFERENCES images (id) ON DELETE CASCADE,
    version TEXT NOT NULL,
    ts INTEGER NOT NULL,
    current INTEGER NOT NULL DEFAULT 0,
    content_type INTEGER NOT NULL DEFAULT 0,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    size INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (image_id, version)
);

CREATE INDEX IF NOT EXISTS idx_images_username ON images (username);
CREATE INDEX IF NOT EXISTS idx_image_versions_ts ON image_versions (image_id, ts);
CREATE UNIQUE INDEX IF NOT EXISTS idx_image_versions_current ON image_versions (image_id) WHERE current = 1;
`
