package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/resilience"
)

var (
	standardColumns = []string{"", "", "", "", "", "", "", "", "", "NOW()", ""}
	ambienceColumns = []string{"", "", "", "", "", "", "", "", "", "", "", "NOW()", ""}
)

// ImageRepository upserts image rows, one bulk statement per call.
type ImageRepository struct {
	db       *sql.DB
	tables   Tables
	executor *resilience.Executor
}

func NewImageRepository(db *sql.DB, tables Tables, executor *resilience.Executor) *ImageRepository {
	return &ImageRepository{
		db:       db,
		tables:   tables.withDefaults(),
		executor: executor,
	}
}

func (r *ImageRepository) UpsertStandard(ctx context.Context, records []domain.CandidateRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(records)*10)
	for _, rec := range records {
		args = append(args,
			rec.Company,
			rec.FiscalYear,
			rec.ProductCode,
			rec.LineNumber,
			nullableString(rec.Description),
			rec.ClassCode,
			rec.AttachmentRef,
			nullableString(rec.AssociatedDocType),
			rec.CreatedAt.UTC(),
			nullableTime(rec.SourceModifiedAt),
		)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	empresa, ejercicio, codprodu, linea, descripcion, codclaarchivo,
	ficadjunto, tipdocasociado, fecalta, fecultmod, fecftpmod
)
VALUES %s
ON CONFLICT (codprodu, codclaarchivo)
DO UPDATE SET
	ficadjunto = EXCLUDED.ficadjunto,
	fecultmod = NOW(),
	fecftpmod = EXCLUDED.fecftpmod
`, r.tables.Standard, placeholders(len(records), standardColumns))

	return r.exec(ctx, "postgres.images.upsert_standard", query, args, len(records))
}

func (r *ImageRepository) UpsertAmbience(ctx context.Context, records []domain.CandidateRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(records)*12)
	for _, rec := range records {
		args = append(args,
			rec.Company,
			rec.FiscalYear,
			rec.ProductCode,
			rec.LineNumber,
			nullableString(rec.Description),
			rec.ClassCode,
			rec.ImageName,
			rec.Subtype,
			rec.AttachmentRef,
			nullableString(rec.AssociatedDocType),
			rec.CreatedAt.UTC(),
			nullableTime(rec.SourceModifiedAt),
		)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	empresa, ejercicio, codprodu, linea, descripcion, codclaarchivo, nombre, subtipo,
	ficadjunto, tipdocasociado, fecalta, fecultmod, fecftpmod
)
VALUES %s
ON CONFLICT (codprodu, codclaarchivo, subtipo)
DO UPDATE SET
	nombre = EXCLUDED.nombre,
	ficadjunto = EXCLUDED.ficadjunto,
	fecultmod = NOW(),
	fecftpmod = EXCLUDED.fecftpmod
`, r.tables.Ambience, placeholders(len(records), ambienceColumns))

	return r.exec(ctx, "postgres.images.upsert_ambience", query, args, len(records))
}

func (r *ImageRepository) exec(ctx context.Context, op, query string, args []any, rows int) (int, error) {
	err := r.executor.Execute(ctx, op, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query, args...)
		return err
	}, classifyStoreError)
	if err != nil {
		return 0, wrapStoreError(op, err)
	}
	return rows, nil
}
