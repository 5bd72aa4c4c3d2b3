package factstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Article is one input record. Both representations are built from it: the
// article text becomes a document, and the article, its authors, and its
// topic become graph elements.
type Article struct {
	Title           string
	Abstract        string
	PublicationDate string
	Authors         []string
	Topic           string
}

// csv column names, matched case-insensitively.
const (
	colTitle    = "title"
	colAbstract = "abstract"
	colDate     = "publication_date"
	colAuthors  = "authors"
	colTopic    = "topic"
)

// ParseArticlesCSV reads a semicolon-separated article dataset. The header
// names the columns Title, Abstract, Publication_Date, Authors, and Topic,
// in any order; the Authors field holds comma-separated names.
func ParseArticlesCSV(r io.Reader) ([]Article, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	index := map[string]int{}
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colTitle, colAbstract} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var articles []Article
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		a := Article{
			Title:           field(record, colTitle),
			Abstract:        field(record, colAbstract),
			PublicationDate: field(record, colDate),
			Topic:           field(record, colTopic),
		}
		for _, author := range strings.Split(field(record, colAuthors), ",") {
			if author = strings.TrimSpace(author); author != "" {
				a.Authors = append(a.Authors, author)
			}
		}
		if a.Title == "" {
			return nil, fmt.Errorf("CSV line %d has an empty title", line)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// LoadCSV parses a semicolon-separated dataset and loads it. It returns the
// number of articles loaded.
func (fs *FactStore) LoadCSV(ctx context.Context, r io.Reader) (int, error) {
	articles, err := ParseArticlesCSV(r)
	if err != nil {
		return 0, err
	}
	if err := fs.Load(ctx, articles); err != nil {
		return 0, err
	}
	return len(articles), nil
}
