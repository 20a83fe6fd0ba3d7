package therapy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrHistoryDisabled is reported when no history store is configured.
var ErrHistoryDisabled = errors.New("recommendation history is not configured")

type Repository interface {
	Save(ctx context.Context, r *RecommendationResult) error
	ListByPatient(ctx context.Context, patientID string) ([]RecommendationResult, error)
}

// Dialect selects placeholder syntax.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type sqlRepo struct {
	db      *sql.DB
	dialect Dialect
}

func NewRepository(db *sql.DB, dialect Dialect) Repository {
	return &sqlRepo{db: db, dialect: dialect}
}

// rebind rewrites ? placeholders to $n for Postgres.
func (r *sqlRepo) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *sqlRepo) Save(ctx context.Context, rec *RecommendationResult) error {
	resourcesJSON, err := json.Marshal(rec.Resources)
	if err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	query := r.rebind(`
		INSERT INTO recommendations (id, patient_id, therapist_id, dominant_emotion, analysis, recommendations, resources, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.PatientID, rec.TherapistID, rec.DominantEmotion,
		rec.Analysis.Text, rec.Recommendations, string(resourcesJSON), rec.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

func (r *sqlRepo) ListByPatient(ctx context.Context, patientID string) ([]RecommendationResult, error) {
	query := r.rebind(`SELECT id, patient_id, therapist_id, dominant_emotion, analysis, recommendations, resources, created_at
		FROM recommendations WHERE patient_id = ? ORDER BY created_at DESC`)

	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecommendationResult
	for rows.Next() {
		var rec RecommendationResult
		var resourcesJSON string
		var created scanTime
		if err := rows.Scan(
			&rec.ID,
			&rec.PatientID,
			&rec.TherapistID,
			&rec.DominantEmotion,
			&rec.Analysis.Text,
			&rec.Recommendations,
			&resourcesJSON,
			&created,
		); err != nil {
			return nil, err
		}
		if resourcesJSON != "" {
			if err := json.Unmarshal([]byte(resourcesJSON), &rec.Resources); err != nil {
				return nil, fmt.Errorf("failed to unmarshal resources: %w", err)
			}
		}
		rec.Timestamp = time.Time(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// scanTime accepts the timestamp representations used by the supported drivers.
type scanTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *scanTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = scanTime(v)
		return nil
	case int64:
		*t = scanTime(time.Unix(v, 0).UTC())
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	case nil:
		*t = scanTime(time.Time{})
		return nil
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (t *scanTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = scanTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}
