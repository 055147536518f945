package wiki

import (
	"sort"
	"strings"
)

// CategoryPrefix is the namespace prefix the remote wiki puts on category titles.
const CategoryPrefix = "Category:"

// Page is the stable identity of a remote content item. Two pages are the same
// entity iff their IDs match; Title is display text only.
type Page struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Kind distinguishes container pages from leaf members.
type Kind int

const (
	KindTrope    Kind = iota // leaf member
	KindCategory             // container
)

func (k Kind) String() string {
	if k == KindCategory {
		return "category"
	}
	return "trope"
}

// Classify reports whether title names a category and returns the title with
// the category prefix removed. The rule is a plain, case-sensitive prefix
// match on CategoryPrefix; every other title is a trope and is returned as is.
func Classify(title string) (Kind, string) {
	if stripped, ok := strings.CutPrefix(title, CategoryPrefix); ok {
		return KindCategory, stripped
	}
	return KindTrope, title
}

// CategoryName strips the category prefix if present.
func CategoryName(title string) string {
	return strings.TrimPrefix(title, CategoryPrefix)
}

// PageSet is a set of pages keyed by ID.
type PageSet map[int64]Page

// Add inserts p, replacing any page with the same ID.
func (s PageSet) Add(p Page) { s[p.ID] = p }

// Has reports whether a page with id is in the set.
func (s PageSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the pages ordered by ID.
func (s PageSet) Sorted() []Page {
	out := make([]Page, 0, len(s))
	for _, p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entry is one member of a Snapshot together with its direct parent categories.
type Entry struct {
	Member  Page
	Parents PageSet
}

// Snapshot maps each member page discovered in one completed batch to the set
// of its resolved parent categories.
type Snapshot map[int64]*Entry

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot { return make(Snapshot) }

// Add unions parents into member's entry, creating the entry if needed. A
// member with no parents still gets an entry.
func (s Snapshot) Add(member Page, parents ...Page) {
	e, ok := s[member.ID]
	if !ok {
		e = &Entry{Member: member, Parents: make(PageSet)}
		s[member.ID] = e
	} else {
		e.Member = member
	}
	for _, p := range parents {
		e.Parents.Add(p)
	}
}

// Entries returns the entries ordered by member ID.
func (s Snapshot) Entries() []*Entry {
	out := make([]*Entry, 0, len(s))
	for _, e := range s {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Member.ID < out[j].Member.ID })
	return out
}
