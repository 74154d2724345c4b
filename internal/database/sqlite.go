package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leca/image-vault/internal/model"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Compile-time check that SQLiteDB implements Database.
var _ Database = (*SQLiteDB)(nil)

// SQLiteDB implements Database backed by SQLite.
type SQLiteDB struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteDB opens (or creates) an SQLite database at dsn and runs migrations.
// For in-memory use pass "file:<name>?mode=memory&cache=shared".
func NewSQLiteDB(dsn string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers, which is what SQLite does
	// anyway, and keeps shared-cache memory databases free of table locks.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteDB{db: db, now: time.Now}, nil
}

func withPragmas(dsn string) string {
	pragmas := []string{"foreign_keys(1)", "busy_timeout(5000)"}
	if !strings.Contains(dsn, "mode=memory") && !strings.Contains(dsn, ":memory:") {
		pragmas = append(pragmas, "journal_mode(WAL)")
	}
	for _, p := range pragmas {
		if strings.Contains(dsn, p) {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=" + p
	}
	return dsn
}

// Close closes the underlying database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *SQLiteDB) CreateUser(ctx context.Context, username string) (*model.UserInfo, error) {
	basePath, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate base path: %w", err)
	}
	u := &model.UserInfo{
		Username:       username,
		ObjectBasePath: basePath.String(),
		CreatedAt:      s.now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (username, object_base_path, created_at)
		VALUES (?, ?, ?)`,
		u.Username, u.ObjectBasePath, u.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *SQLiteDB) FindUser(ctx context.Context, username string) (*model.UserInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT username, object_base_path, created_at
		FROM users WHERE username = ?`,
		username,
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *SQLiteDB) ListUsers(ctx context.Context) ([]*model.UserInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, object_base_path, created_at
		FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*model.UserInfo
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

// InsertImage creates the image row. A row that already exists for
// (name, username) is left untouched and reported as not inserted.
func (s *SQLiteDB) InsertImage(ctx context.Context, img *model.ImageInfo) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, name, extension, content_type, created_at, username)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		img.ID, img.Name, img.Extension, int(img.ContentType),
		s.now().UTC().Format(time.RFC3339Nano), img.Username,
	)
	if err != nil {
		return false, fmt.Errorf("insert image: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert image: %w", err)
	}
	return n == 1, nil
}

// FindImage returns the image with its current version token and content
// type. The token is empty when the image has no lineage.
func (s *SQLiteDB) FindImage(ctx context.Context, id, username string) (*model.ImageInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT i.id, i.name, i.username, i.extension,
			COALESCE(NULLIF(v.content_type, 0), i.content_type), v.version
		FROM images i
		LEFT JOIN image_versions v ON v.image_id = i.id AND v.current = 1
		WHERE i.id = ? AND i.username = ?`,
		id, username,
	)

	info := &model.ImageInfo{}
	var contentType int
	var version sql.NullString
	err := row.Scan(&info.ID, &info.Name, &info.Username, &info.Extension, &contentType, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find image: %w", err)
	}
	info.ContentType = model.ContentTypeFromInt(contentType)
	info.Version = version.String
	return info, nil
}

// lineageQuery ranks every version of the user's images by ts and joins the
// current one back to its image. Callers append extra filters on i.
const lineageQuery = `
	WITH ranked AS (
		SELECT v.image_id, v.version, v.ts, v.current, v.content_type, v.width, v.height, v.size,
			ROW_NUMBER() OVER (PARTITION BY v.image_id ORDER BY v.ts ASC) AS idx,
			COUNT(*) OVER (PARTITION BY v.image_id) AS version_count
		FROM image_versions v
		JOIN images vi ON vi.id = v.image_id
		WHERE vi.username = ?
	)
	SELECT i.id, i.name, i.username, i.extension,
		COALESCE(NULLIF(r.content_type, 0), i.content_type), i.created_at,
		r.version, r.ts, r.width, r.height, r.size, r.idx, r.version_count
	FROM images i
	LEFT JOIN ranked r ON r.image_id = i.id AND r.current = 1
	WHERE i.username = ?`

func (s *SQLiteDB) FindImageWithLineage(ctx context.Context, id, username string) (*model.Image, error) {
	row := s.db.QueryRowContext(ctx, lineageQuery+` AND i.id = ?`, username, username, id)
	img, err := scanLineage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return img, err
}

func (s *SQLiteDB) FindAllImages(ctx context.Context, username string) ([]*model.Image, error) {
	rows, err := s.db.QueryContext(ctx, lineageQuery+` ORDER BY i.id ASC`, username, username)
	if err != nil {
		return nil, fmt.Errorf("find all images: %w", err)
	}
	defer rows.Close()

	var images []*model.Image
	for rows.Next() {
		img, err := scanLineage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *SQLiteDB) FindImageIDByName(ctx context.Context, name, username string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM images WHERE name = ? AND username = ?`, name, username,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find image id: %w", err)
	}
	return id, nil
}

// DeleteImage removes the image row; its versions go with it via ON DELETE CASCADE.
func (s *SQLiteDB) DeleteImage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return checkRowsAffected(res)
}

// RenameImage returns the new name, or "" when no row was updated.
func (s *SQLiteDB) RenameImage(ctx context.Context, id, newName string) (string, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE images SET name = ? WHERE id = ?`, newName, id)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateName
		}
		return "", fmt.Errorf("rename image: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("rename image: %w", err)
	}
	if n != 1 {
		return "", nil
	}
	return newName, nil
}

// ---------------------------------------------------------------------------
// Versions
// ---------------------------------------------------------------------------

var errInsertSkipped = errors.New("version insert skipped")

// InsertImageVersion appends v to the lineage as the current version and
// demotes every sibling in the same transaction. ts is assigned here and is
// strictly greater than any ts already recorded for the image. It returns
// the inserted token, or "" when the (image, version) pair already exists,
// in which case nothing changes.
func (s *SQLiteDB) InsertImageVersion(ctx context.Context, v *model.ImageVersion) (string, error) {
	var inserted string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE image_versions SET current = 0 WHERE image_id = ? AND current = 1`, v.ImageID,
		); err != nil {
			return fmt.Errorf("demote versions: %w", err)
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO image_versions (image_id, version, ts, current, content_type, width, height, size)
			VALUES (?, ?, MAX(?, COALESCE((SELECT MAX(ts) FROM image_versions WHERE image_id = ?), 0) + 1), 1, ?, ?, ?, ?)
			ON CONFLICT (image_id, version) DO NOTHING
			RETURNING version`,
			v.ImageID, v.Version, s.now().UTC().UnixNano(), v.ImageID, int(v.ContentType), v.Width, v.Height, v.Size,
		).Scan(&inserted)
		if errors.Is(err, sql.ErrNoRows) {
			return errInsertSkipped
		}
		if err != nil {
			return fmt.Errorf("insert image version: %w", err)
		}
		return nil
	})
	if errors.Is(err, errInsertSkipped) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return inserted, nil
}

func (s *SQLiteDB) ListImageVersions(ctx context.Context, imageID string) ([]*model.ImageVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT image_id, version, ts, current, content_type, width, height, size
		FROM image_versions WHERE image_id = ?
		ORDER BY ts ASC`,
		imageID,
	)
	if err != nil {
		return nil, fmt.Errorf("list image versions: %w", err)
	}
	defer rows.Close()

	var versions []*model.ImageVersion
	for rows.Next() {
		v := &model.ImageVersion{}
		var current, contentType int
		if err := rows.Scan(&v.ImageID, &v.Version, &v.TS, &current, &contentType, &v.Width, &v.Height, &v.Size); err != nil {
			return nil, fmt.Errorf("scan image version: %w", err)
		}
		v.Current = current != 0
		v.ContentType = model.ContentTypeFromInt(contentType)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// RevertImageVersion moves the current pointer to the immediately older
// version and returns the resulting current token. At the initial version
// the current token is returned unchanged; with no lineage it returns "".
func (s *SQLiteDB) RevertImageVersion(ctx context.Context, imageID string) (string, error) {
	return s.moveCurrent(ctx, imageID, `
		SELECT version FROM image_versions
		WHERE image_id = ? AND ts < ? AND version <> ?
		ORDER BY ts DESC LIMIT 1`)
}

// RestoreImageVersion is RevertImageVersion in the newer direction.
func (s *SQLiteDB) RestoreImageVersion(ctx context.Context, imageID string) (string, error) {
	return s.moveCurrent(ctx, imageID, `
		SELECT version FROM image_versions
		WHERE image_id = ? AND ts > ? AND version <> ?
		ORDER BY ts ASC LIMIT 1`)
}

func (s *SQLiteDB) moveCurrent(ctx context.Context, imageID, neighbourQuery string) (string, error) {
	var result string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		var ts int64
		err := tx.QueryRowContext(ctx,
			`SELECT version, ts FROM image_versions WHERE image_id = ? AND current = 1`, imageID,
		).Scan(&current, &ts)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get current version: %w", err)
		}

		var target string
		err = tx.QueryRowContext(ctx, neighbourQuery, imageID, ts, current).Scan(&target)
		if errors.Is(err, sql.ErrNoRows) {
			result = current
			return nil
		}
		if err != nil {
			return fmt.Errorf("find neighbour version: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE image_versions SET current = 0 WHERE image_id = ? AND current = 1`, imageID,
		); err != nil {
			return fmt.Errorf("demote versions: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE image_versions SET current = 1 WHERE image_id = ? AND version = ?`, imageID, target,
		)
		if err != nil {
			return fmt.Errorf("promote version: %w", err)
		}
		if err := checkRowsAffected(res); err != nil {
			return fmt.Errorf("promote version %s: %w", target, err)
		}
		result = target
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *SQLiteDB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Error().Err(err).Msg("rollback failed")
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scannable) (*model.UserInfo, error) {
	u := &model.UserInfo{}
	var createdStr string
	if err := row.Scan(&u.Username, &u.ObjectBasePath, &createdStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return u, nil
}

func scanLineage(row scannable) (*model.Image, error) {
	img := &model.Image{}
	var (
		contentType                          int
		createdStr                           string
		version                              sql.NullString
		ts, width, height, size, idx, vCount sql.NullInt64
	)
	err := row.Scan(&img.ID, &img.Name, &img.Username, &img.Extension, &contentType, &createdStr,
		&version, &ts, &width, &height, &size, &idx, &vCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan image: %w", err)
	}

	img.ContentType = model.ContentTypeFromInt(contentType)
	img.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if version.Valid {
		img.Version = version.String
		img.LastModified = time.Unix(0, ts.Int64).UTC()
		img.Width = int(width.Int64)
		img.Height = int(height.Int64)
		img.Size = size.Int64
		img.VersionIndex = int(idx.Int64)
		img.VersionCount = int(vCount.Int64)
		img.LatestVersion = img.VersionIndex == img.VersionCount
		img.InitialVersion = img.VersionIndex == 1
	}
	return img, nil
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
