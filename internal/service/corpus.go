package service

import (
	"fmt"
	"strings"

	"github.com/leyan/cinevec/internal/domain"
	"github.com/leyan/cinevec/internal/vectorindex"
)

// BuildCorpusText composes the text embedded for one movie. A natural
// language sentence carries entity relations ("由...执导") better through
// BERT-family models than a key/value listing would.
func BuildCorpusText(m *domain.Movie) string {
	var b strings.Builder

	fmt.Fprintf(&b, "电影《%s》", m.Title)
	if m.Year > 0 {
		fmt.Fprintf(&b, "于%d年上映", m.Year)
	}
	if m.Country != "" {
		fmt.Fprintf(&b, "，产地%s", m.Country)
	}
	if len(m.Genres) > 0 {
		fmt.Fprintf(&b, "，类型为%s", strings.Join(m.Genres, "/"))
	}
	if len(m.Directors) > 0 {
		fmt.Fprintf(&b, "。由%s执导", strings.Join(m.Directors, "、"))
	}
	if len(m.Actors) > 0 {
		fmt.Fprintf(&b, "，%s主演", strings.Join(m.Actors, "、"))
	}
	fmt.Fprintf(&b, "。剧情简介：%s", m.Summary)

	return b.String()
}

// CorpusRecords converts movies into index records, skipping entries whose
// summary is shorter than minSummaryRunes. Those rows are low-quality data
// that would only add noise to the index.
func CorpusRecords(movies []domain.Movie, minSummaryRunes int) []vectorindex.Record {
	records := make([]vectorindex.Record, 0, len(movies))
	for i := range movies {
		m := &movies[i]
		if len([]rune(strings.TrimSpace(m.Summary))) < minSummaryRunes {
			continue
		}
		records = append(records, vectorindex.Record{
			ID:   m.ID,
			Text: BuildCorpusText(m),
			Meta: m.Meta(),
		})
	}
	return records
}
