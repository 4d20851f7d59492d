package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"MoviePageViews/internal/domain"
)

// KeyPrefix prefixes every movie id in the JSON document.
const KeyPrefix = "movie-"

type entry struct {
	Title          string `json:"title"`
	ID             string `json:"id"`
	TotalPageViews int64  `json:"totalPageViews"`
}

// JSON renders the report as a JSON object keyed "movie-<id>" whose members
// appear in ranked order, indented by two spaces.
func JSON(r domain.Report) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, scored := range r.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := marshal(KeyPrefix + scored.Movie.ID)
		if err != nil {
			return nil, fmt.Errorf("encode key for movie %s: %w", scored.Movie.ID, err)
		}
		value, err := marshal(entry{
			Title:          scored.Movie.Title,
			ID:             scored.Movie.ID,
			TotalPageViews: scored.TotalPageViews,
		})
		if err != nil {
			return nil, fmt.Errorf("encode movie %s: %w", scored.Movie.ID, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent report: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Table renders the report for terminals.
func Table(r domain.Report) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "ID", "Title", "Page views"})

	for i, scored := range r.Entries {
		tw.AppendRow(table.Row{
			i + 1,
			scored.Movie.ID,
			scored.Movie.Title,
			strconv.FormatInt(scored.TotalPageViews, 10),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	if r.RunID != "" {
		tw.SetCaption("run %s, generated %s", r.RunID, r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}

	return tw.Render() + "\n"
}
