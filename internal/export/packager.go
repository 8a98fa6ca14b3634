// Package export runs approved queries and packages their results as
// downloadable artifacts plus a transcript preview.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashureev/wms-askbot/internal/datasource"
	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/ashureev/wms-askbot/internal/safety"
	"github.com/google/uuid"
)

// ArtifactPrefix starts every artifact filename; the janitor only touches
// files with this prefix.
const ArtifactPrefix = "results_"

// Result is the outcome of packaging one query.
type Result struct {
	Columns  []string
	RowCount int
	// Files is nil when the query returned no rows.
	Files   map[domain.Format]string
	Preview string
}

// Empty reports whether the query returned no rows.
func (r *Result) Empty() bool {
	return r.RowCount == 0
}

// Packager executes queries and writes their results under dir.
type Packager struct {
	querier datasource.Querier
	dir     string
	logger  *slog.Logger
}

// NewPackager creates the output directory if needed.
func NewPackager(querier datasource.Querier, dir string, logger *slog.Logger) (*Packager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Packager{querier: querier, dir: dir, logger: logger}, nil
}

// Dir returns the output directory.
func (p *Packager) Dir() string {
	return p.dir
}

// Package re-checks sql with the safety gate, executes it, and on a non-empty
// result writes CSV and Excel artifacts sharing one random suffix.
func (p *Packager) Package(ctx context.Context, sql string) (*Result, error) {
	if err := safety.Check(sql); err != nil {
		return nil, err
	}

	rs, err := p.querier.Query(ctx, sql)
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: rs.Columns, RowCount: len(rs.Rows)}
	if rs.Empty() {
		return result, nil
	}

	files, err := p.save(rs)
	if err != nil {
		return nil, err
	}
	result.Files = files
	result.Preview = RenderPreview(rs, PreviewRows)

	p.logger.Info("Result packaged", "rows", result.RowCount, "columns", len(rs.Columns), "csv", files[domain.FormatCSV])
	return result, nil
}

func (p *Packager) save(rs *datasource.ResultSet) (map[domain.Format]string, error) {
	unique := strings.ReplaceAll(uuid.NewString(), "-", "")
	csvPath := filepath.Join(p.dir, ArtifactPrefix+unique+".csv")
	xlsxPath := filepath.Join(p.dir, ArtifactPrefix+unique+".xlsx")

	if err := WriteCSV(csvPath, rs); err != nil {
		return nil, err
	}
	if err := WriteExcel(xlsxPath, rs); err != nil {
		return nil, err
	}

	return map[domain.Format]string{
		domain.FormatCSV:   csvPath,
		domain.FormatExcel: xlsxPath,
	}, nil
}
