package reports

import (
	"context"
	"database/sql"
	"fmt"
)

// Runner 在 gamer_records 上执行描述性报表
// 报表是存储之上的薄消费层，只读，不经过引擎。
type Runner struct {
	db *sql.DB
}

func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// Run executes one named report and returns its rows as generic maps,
// so any catalog query works without a per-report struct.
func (r *Runner) Run(ctx context.Context, name string) ([]map[string]interface{}, error) {
	query, ok := Query(name)
	if !ok {
		return nil, fmt.Errorf("unknown report %q", name)
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := []map[string]interface{}{}
	for rows.Next() {
		colsData := make([]interface{}, len(cols))
		colsPointers := make([]interface{}, len(cols))
		for i := range colsData {
			colsPointers[i] = &colsData[i]
		}

		if err := rows.Scan(colsPointers...); err != nil {
			return nil, err
		}

		rowMap := make(map[string]interface{})
		for i, colName := range cols {
			val := colsData[i]
			switch v := val.(type) {
			case []byte:
				rowMap[colName] = string(v)
			default:
				rowMap[colName] = v
			}
		}
		results = append(results, rowMap)
	}
	return results, rows.Err()
}

// ExportAll runs every catalog report and writes each as a timestamped
// JSON file under dir. Returns the written filenames.
func (r *Runner) ExportAll(ctx context.Context, dir string) ([]string, error) {
	files := make([]string, 0, len(ReportNames))
	for _, name := range ReportNames {
		results, err := r.Run(ctx, name)
		if err != nil {
			return files, err
		}
		filename := TimestampedFilename(dir, name)
		if err := ExportJSON(filename, results); err != nil {
			return files, err
		}
		files = append(files, filename)
	}
	return files, nil
}
