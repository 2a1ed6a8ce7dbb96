// Package feed разбирает RSS и Atom документы в плоский список записей.
//
// Документ может содержать оба вида блоков сразу: <item> (RSS/RDF) и <entry> (Atom).
// Каждый вид разбирает свой FeedParser, Multi склеивает результаты.
package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Одна запись ленты, поля еще не очищены от разметки
type Entry struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Published   string
	Author      string
	Categories  []string
	// Исходные значения полей для аудита
	Raw map[string]any
}

// ExternalID идентификатор записи внутри источника.
// Если в ленте нет guid/id, то склеиваем ссылку и заголовок
func (e Entry) ExternalID() string {
	if e.GUID != "" {
		return e.GUID
	}
	return e.Link + "-" + e.Title
}

type FeedParser interface {
	Parse(data []byte) ([]Entry, error)
}

// Парсер <item> блоков (RSS 2.0, RSS 1.0/RDF)
type ItemStyle struct{}

// Парсер <entry> блоков (Atom)
type EntryStyle struct{}

// Multi запускает парсеры по очереди и склеивает записи в порядке парсеров
type Multi []FeedParser

func (m Multi) Parse(data []byte) ([]Entry, error) {
	var entries []Entry
	for _, p := range m {
		parsed, err := p.Parse(data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, parsed...)
	}
	return entries, nil
}

// Lenient пробует Fallback, если Primary не справился с документом
type Lenient struct {
	Primary  FeedParser
	Fallback FeedParser
}

func (l Lenient) Parse(data []byte) ([]Entry, error) {
	entries, err := l.Primary.Parse(data)
	if err == nil || l.Fallback == nil {
		return entries, err
	}

	fallback, fbErr := l.Fallback.Parse(data)
	if fbErr != nil {
		return nil, fmt.Errorf("feed: %w (fallback: %v)", err, fbErr)
	}
	return fallback, nil
}

// Default парсер, которым пользуется сборщик
func Default() FeedParser {
	return Lenient{
		Primary:  Multi{ItemStyle{}, EntryStyle{}},
		Fallback: RSSLib{},
	}
}

var ErrEmpty = errors.New("feed: empty document")

// walk проходит по документу и отдает в fn каждый элемент с локальным именем local
func walk(data []byte, local string, fn func(d *xml.Decoder, se xml.StartElement) error) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmpty
	}

	d := xml.NewDecoder(bytes.NewReader(data))
	// Ленты часто содержат html сущности вроде &nbsp; прямо в тексте
	d.Strict = false
	d.Entity = xml.HTMLEntity

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("feed: parse xml: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(se.Name.Local, local) {
			continue
		}

		if err := fn(d, se); err != nil {
			return fmt.Errorf("feed: decode <%s>: %w", local, err)
		}
	}
}

// node дочерний элемент записи вместе с его пространством имен.
// <media:title> и <title> совпадают по локальному имени, поэтому такие поля собираем списком
type node struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
	Inner   string `xml:",innerxml"`
}

// text возвращает текст элемента, для xhtml содержимого - разметку внутри него
func (n node) text() string {
	if t := strings.TrimSpace(n.Text); t != "" {
		return t
	}
	return strings.TrimSpace(n.Inner)
}

// own значения элементов из пространства имен самой записи, остальные отбрасываются
func own(nodes []node, space string) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.XMLName.Space == space {
			out = append(out, n.text())
		}
	}
	return out
}

type rssItem struct {
	GUID        []node `xml:"guid"`
	Title       []node `xml:"title"`
	Links       []node `xml:"link"`
	Description []node `xml:"description"`
	Encoded     string `xml:"encoded"`
	PubDate     []node `xml:"pubDate"`
	Date        string `xml:"date"`
	Creator     string `xml:"creator"`
	Author      []node `xml:"author"`
	Categories  []node `xml:"category"`
	About       string `xml:"about,attr"`
}

func (ItemStyle) Parse(data []byte) ([]Entry, error) {
	var entries []Entry

	err := walk(data, "item", func(d *xml.Decoder, se xml.StartElement) error {
		var it rssItem
		if err := d.DecodeElement(&it, &se); err != nil {
			return err
		}
		space := se.Name.Space

		var (
			title       = firstNonEmpty(own(it.Title, space)...)
			link        = firstNonEmpty(own(it.Links, space)...)
			description = firstNonEmpty(append(own(it.Description, space), it.Encoded)...)
			pubDate     = firstNonEmpty(append(own(it.PubDate, space), it.Date)...)
			author      = firstNonEmpty(append([]string{it.Creator}, own(it.Author, space)...)...)
		)

		// Пустые блоки пропускаем
		if title == "" && link == "" {
			return nil
		}

		entries = append(entries, Entry{
			GUID:        firstNonEmpty(append(own(it.GUID, space), it.About, link)...),
			Title:       title,
			Link:        link,
			Description: description,
			Published:   pubDate,
			Author:      author,
			Categories:  trimAll(own(it.Categories, space)),
			Raw: map[string]any{
				"title":       title,
				"link":        link,
				"description": description,
				"pubDate":     pubDate,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

type atomLink struct {
	XMLName xml.Name
	Href    string `xml:"href,attr"`
	Rel     string `xml:"rel,attr"`
	Text    string `xml:",chardata"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     []node     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Summary   []node     `xml:"summary"`
	Content   []node     `xml:"content"`
	Updated   string     `xml:"updated"`
	Published string     `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

func (EntryStyle) Parse(data []byte) ([]Entry, error) {
	var entries []Entry

	err := walk(data, "entry", func(d *xml.Decoder, se xml.StartElement) error {
		var e atomEntry
		if err := d.DecodeElement(&e, &se); err != nil {
			return err
		}
		space := se.Name.Space

		var (
			title   = firstNonEmpty(own(e.Title, space)...)
			link    = atomEntryLink(e.Links, space)
			summary = firstNonEmpty(append(own(e.Summary, space), own(e.Content, space)...)...)
			updated = firstNonEmpty(e.Updated, e.Published)
			author  string
		)
		if len(e.Authors) > 0 {
			author = strings.TrimSpace(e.Authors[0].Name)
		}

		categories := make([]string, 0, len(e.Categories))
		for _, c := range e.Categories {
			categories = append(categories, c.Term)
		}

		if title == "" && link == "" {
			return nil
		}

		entries = append(entries, Entry{
			GUID:        firstNonEmpty(e.ID, link),
			Title:       title,
			Link:        link,
			Description: summary,
			Published:   updated,
			Author:      author,
			Categories:  trimAll(categories),
			Raw: map[string]any{
				"title":   title,
				"link":    link,
				"summary": summary,
				"updated": updated,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Берем alternate ссылку, иначе первую с href, иначе текст внутри <link>
func atomEntryLink(all []atomLink, space string) string {
	links := make([]atomLink, 0, len(all))
	for _, l := range all {
		if l.XMLName.Space == space {
			links = append(links, l)
		}
	}

	for _, l := range links {
		if l.Href != "" && (l.Rel == "" || l.Rel == "alternate") {
			return strings.TrimSpace(l.Href)
		}
	}
	for _, l := range links {
		if l.Href != "" {
			return strings.TrimSpace(l.Href)
		}
	}
	for _, l := range links {
		if t := strings.TrimSpace(l.Text); t != "" {
			return t
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
