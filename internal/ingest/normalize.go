package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"pledgewatch/internal/domain"
	"pledgewatch/internal/registry"
	"pledgewatch/pkg/platform/sentinel"
)

// fieldMap is the per-source mapping from raw payload keys to evidence
// fields. Adding a source type is a row here plus a threshold entry, not a
// new code path.
type fieldMap struct {
	Title       string
	Date        string
	Departments string
	Text        string
	URL         string
}

var fieldMaps = map[domain.SourceType]fieldMap{
	domain.SourceNews: {
		Title:       "title",
		Date:        "published",
		Departments: "categories",
		Text:        "description",
		URL:         "link",
	},
	domain.SourceRegulatory: {
		Title:       "title",
		Date:        "date",
		Departments: "department",
		Text:        "summary",
		URL:         "url",
	},
}

// BillStageEvidenceID derives the stable identifier for bill-stage evidence.
// The same (bill, stage) pair always maps to the same ID, which is what
// makes re-polling idempotent.
func BillStageEvidenceID(key domain.BillKey, stage domain.StageID) string {
	return fmt.Sprintf("evidence:bill:%s:%s", key.String(), stage)
}

// NormalizeBillStage materializes one completed stage as an evidence record.
func NormalizeBillStage(snap *domain.BillSnapshot, stage domain.CompletedStage) domain.Evidence {
	title := snap.ShortTitle
	if title == "" {
		title = snap.LongTitle
	}
	description := snap.Summary
	if description == "" {
		description = snap.LongTitle
	}

	date := stage.Date
	if date.IsZero() {
		date = snap.LatestActivity
	}

	return domain.Evidence{
		ID:          BillStageEvidenceID(snap.Key, stage.ID),
		Source:      domain.SourceBillStage,
		Title:       fmt.Sprintf("%s: %s", title, stage.Name),
		Description: description,
		Date:        date,
		Departments: snap.Departments,
		BillKey:     snap.Key.String(),
		StageID:     stage.ID,
		Terminal:    stage.ID.IsTerminal(),
	}
}

// NormalizeItem maps a raw feed payload to an evidence record using the
// source's field map. Missing optional fields become zero values; a payload
// whose date cannot be resolved, or that has neither title nor URL, is
// malformed because the deterministic identifier depends on them.
func NormalizeItem(source domain.SourceType, raw map[string]any) (domain.Evidence, error) {
	fm, ok := fieldMaps[source]
	if !ok {
		return domain.Evidence{}, fmt.Errorf("no field map for source %q", source)
	}

	title := stringField(raw, fm.Title)
	url := stringField(raw, fm.URL)
	if title == "" && url == "" {
		return domain.Evidence{}, fmt.Errorf("item has neither title nor url: %w", sentinel.ErrMalformed)
	}

	date, err := dateField(raw, fm.Date)
	if err != nil {
		return domain.Evidence{}, fmt.Errorf("item date: %w", sentinel.ErrMalformed)
	}

	return domain.Evidence{
		ID:          itemEvidenceID(source, date, title, url),
		Source:      source,
		Title:       title,
		Description: stringField(raw, fm.Text),
		Date:        date,
		Departments: stringsField(raw, fm.Departments),
		URL:         url,
	}, nil
}

func itemEvidenceID(source domain.SourceType, date time.Time, title, url string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + url))
	return fmt.Sprintf("evidence:%s:%s:%s", source, date.Format("2006-01-02"), hex.EncodeToString(sum[:6]))
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func stringsField(raw map[string]any, key string) []string {
	switch v := raw[key].(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func dateField(raw map[string]any, key string) (time.Time, error) {
	switch v := raw[key].(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v != nil {
			return *v, nil
		}
	case string:
		if v != "" {
			return registry.ParseTime(v)
		}
	}
	return time.Time{}, fmt.Errorf("missing or unusable %q field", key)
}
