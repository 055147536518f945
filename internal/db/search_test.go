package db

import (
	"context"
	"reflect"
	"testing"

	"allthetropes/catwalk/internal/wiki"
)

func TestSearchTerms_StopwordRemoval(t *testing.T) {
	got := SearchTerms("The Hero of the Story")
	want := []string{"hero", "story"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSearchTerms_ShortWords(t *testing.T) {
	got := SearchTerms("go do run fast")
	want := []string{"run", "fast"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSearchTerms_PunctuationTrimming(t *testing.T) {
	got := SearchTerms(`"Twist Ending", (100% Completion)`)
	want := []string{"twist", "ending", "100", "completion"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSearchTerms_AllStopwords(t *testing.T) {
	if got := SearchTerms("the a an in on at"); len(got) != 0 {
		t.Errorf("expected no terms, got %q", got)
	}
}

func TestSearchTitles(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	s := wiki.NewSnapshot()
	s.Add(wiki.Page{ID: 1, Title: "Twist Ending"}, wiki.Page{ID: 100, Title: "Category:Ending Tropes"})
	s.Add(wiki.Page{ID: 2, Title: "Happy Ending"}, wiki.Page{ID: 100, Title: "Category:Ending Tropes"})
	s.Add(wiki.Page{ID: 3, Title: "100%_Completion"}, wiki.Page{ID: 101, Title: "Category:Trope"})
	if err := d.Upsert(ctx, s); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := d.SearchTitles(ctx, "ending", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := []TitleMatch{
		{Page: wiki.Page{ID: 100, Title: "Ending Tropes"}, Kind: "category"},
		{Page: wiki.Page{ID: 2, Title: "Happy Ending"}, Kind: "trope"},
		{Page: wiki.Page{ID: 1, Title: "Twist Ending"}, Kind: "trope"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	got, err = d.SearchTitles(ctx, "twist ENDING", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Page.ID != 1 {
		t.Errorf("expected only Twist Ending, got %+v", got)
	}

	// LIKE wildcards in the query are literal.
	got, err = d.SearchTitles(ctx, "0%_c", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Page.ID != 3 {
		t.Errorf("expected only 100%%_Completion, got %+v", got)
	}

	got, err = d.SearchTitles(ctx, "ending", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("limit not applied: %+v", got)
	}
}

func TestSearchTitles_EmptyQuery(t *testing.T) {
	d := openTestDB(t)
	got, err := d.SearchTitles(context.Background(), "the of", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}
