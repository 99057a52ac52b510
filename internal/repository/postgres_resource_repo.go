package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/lib/pq"
)

// PostgresResourceRepo はPostgreSQLを使用したリソースリポジトリ。
type PostgresResourceRepo struct {
	db *sql.DB
}

// NewPostgresResourceRepo はPostgresResourceRepoを生成する。
func NewPostgresResourceRepo(db *sql.DB) *PostgresResourceRepo {
	return &PostgresResourceRepo{db: db}
}

// resourceColumns はSELECT句の列リスト。scanResourceと順序を揃えること。
const resourceColumns = `id, name, type, course, year, description, keywords,
	file_url, file_name, file_mime_type, file_size_bytes, uploader_id, created_at, updated_at`

// scanResource は1行をmodel.Resourceに変換する。
// file_* 列はall-or-noneなので、file_urlの有無でFileMetaの有無を決める。
func scanResource(scanner interface{ Scan(...any) error }) (*model.Resource, error) {
	var (
		r           model.Resource
		keywords    pq.StringArray
		fileURL     sql.NullString
		fileName    sql.NullString
		fileMime    sql.NullString
		fileSize    sql.NullInt64
		uploaderID  sql.NullString
	)

	err := scanner.Scan(
		&r.ID, &r.Name, &r.Type, &r.Course, &r.Year, &r.Description, &keywords,
		&fileURL, &fileName, &fileMime, &fileSize, &uploaderID, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Keywords = []string(keywords)
	r.UploaderID = uploaderID.String
	if fileURL.Valid {
		r.File = &model.FileMeta{
			URL:       fileURL.String,
			Name:      fileName.String,
			MimeType:  fileMime.String,
			SizeBytes: fileSize.Int64,
		}
	}

	return &r, nil
}

// ListAll は全リソースを作成日時の降順で返す。
func (r *PostgresResourceRepo) ListAll(ctx context.Context) ([]model.Resource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+resourceColumns+` FROM resources ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	return collectResources(rows)
}

// Search は条件に一致するリソースを作成日時の降順で返す。
// Termはname/descriptionのILIKE部分一致とkeywords配列の要素一致のOR、
// Year/Type/Courseは完全一致のAND条件になる。
func (r *PostgresResourceRepo) Search(ctx context.Context, filter ResourceFilter) ([]model.Resource, error) {
	var (
		conds []string
		args  []any
	)

	if filter.Term != "" {
		pattern := "%" + filter.Term + "%"
		args = append(args, pattern)
		p := len(args)
		args = append(args, filter.Term)
		conds = append(conds, fmt.Sprintf(
			"(name ILIKE $%d OR description ILIKE $%d OR $%d = ANY(keywords))", p, p, p+1,
		))
	}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		conds = append(conds, fmt.Sprintf("year = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Course != "" {
		args = append(args, filter.Course)
		conds = append(conds, fmt.Sprintf("course = $%d", len(args)))
	}

	query := `SELECT ` + resourceColumns + ` FROM resources`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search resources: %w", err)
	}
	defer rows.Close()

	return collectResources(rows)
}

// FindByID は指定IDのリソースを取得する。見つからない場合はnilを返す。
func (r *PostgresResourceRepo) FindByID(ctx context.Context, id string) (*model.Resource, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = $1`,
		id,
	)

	res, err := scanResource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}
	return res, nil
}

// Create はリソースを作成する。
func (r *PostgresResourceRepo) Create(ctx context.Context, resource *model.Resource) error {
	var (
		fileURL  sql.NullString
		fileName sql.NullString
		fileMime sql.NullString
		fileSize sql.NullInt64
	)
	if resource.File != nil {
		fileURL = sql.NullString{String: resource.File.URL, Valid: true}
		fileName = sql.NullString{String: resource.File.Name, Valid: true}
		fileMime = sql.NullString{String: resource.File.MimeType, Valid: true}
		fileSize = sql.NullInt64{Int64: resource.File.SizeBytes, Valid: true}
	}

	uploaderID := sql.NullString{String: resource.UploaderID, Valid: resource.UploaderID != ""}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resources
		 (id, name, type, course, year, description, keywords,
		  file_url, file_name, file_mime_type, file_size_bytes, uploader_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		resource.ID, resource.Name, resource.Type, resource.Course, resource.Year,
		resource.Description, pq.Array(resource.Keywords),
		fileURL, fileName, fileMime, fileSize, uploaderID,
		resource.CreatedAt, resource.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのリソースを削除する。
func (r *PostgresResourceRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM resources WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	return nil
}

// collectResources はrowsを読み切ってスライスに集める。
func collectResources(rows *sql.Rows) ([]model.Resource, error) {
	var results []model.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource row: %w", err)
		}
		results = append(results, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resource rows: %w", err)
	}
	return results, nil
}

// compile-time interface check
var _ ResourceRepository = (*PostgresResourceRepo)(nil)
