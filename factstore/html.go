package factstore

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// ParseArticlesHTML reads an article listing page. Each <article> element
// contributes one record:
//
//	<article>
//	  <h2>Title</h2>
//	  <p class="abstract">...</p>
//	  <ul class="authors"><li>Name</li>...</ul>
//	  <span class="topic">Topic</span>
//	  <time datetime="2024-03-01">March 2024</time>
//	</article>
//
// The page is untrusted input; all extracted fields are stripped to plain
// text before they enter the fact store.
func ParseArticlesHTML(r io.Reader) ([]Article, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	strip := bluemonday.StrictPolicy()
	text := func(s *goquery.Selection) string {
		raw, err := s.Html()
		if err != nil {
			return strings.TrimSpace(s.Text())
		}
		return strings.TrimSpace(html.UnescapeString(strip.Sanitize(raw)))
	}

	var articles []Article
	var parseErr error
	doc.Find("article").EachWithBreak(func(i int, s *goquery.Selection) bool {
		a := Article{
			Title:    text(s.Find("h1, h2, h3").First()),
			Abstract: text(s.Find("p.abstract").First()),
			Topic:    text(s.Find(".topic").First()),
		}
		if date, ok := s.Find("time").First().Attr("datetime"); ok {
			a.PublicationDate = strings.TrimSpace(date)
		} else {
			a.PublicationDate = text(s.Find("time").First())
		}
		s.Find(".authors li").Each(func(_ int, li *goquery.Selection) {
			if name := text(li); name != "" {
				a.Authors = append(a.Authors, name)
			}
		})

		if a.Title == "" {
			parseErr = fmt.Errorf("article element %d has no title", i+1)
			return false
		}
		articles = append(articles, a)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return articles, nil
}

// LoadHTML parses an article listing page and loads it. It returns the
// number of articles loaded.
func (fs *FactStore) LoadHTML(ctx context.Context, r io.Reader) (int, error) {
	articles, err := ParseArticlesHTML(r)
	if err != nil {
		return 0, err
	}
	if err := fs.Load(ctx, articles); err != nil {
		return 0, err
	}
	return len(articles), nil
}
