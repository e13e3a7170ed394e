package dashboard

import (
	"reflect"
	"testing"
)

func TestSuggestLocationsMatchesCaseInsensitively(t *testing.T) {
	cities := []string{"Bangalore", "Pune", "Remote"}

	got := SuggestLocations("an", cities)
	want := []string{"Bangalore"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	got = SuggestLocations("PUNE", cities)
	want = []string{"Pune"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSuggestLocationsEmptyFragment(t *testing.T) {
	if got := SuggestLocations("", DefaultCities); got != nil {
		t.Fatalf("expected nil for empty fragment, got %v", got)
	}
	if got := SuggestLocations("   ", DefaultCities); got != nil {
		t.Fatalf("expected nil for blank fragment, got %v", got)
	}
}

func TestSuggestLocationsPreservesSourceOrder(t *testing.T) {
	got := SuggestLocations("e", []string{"Chennai", "Delhi NCR", "Pune", "Remote"})
	want := []string{"Chennai", "Delhi NCR", "Pune", "Remote"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected source order %v, got %v", want, got)
	}
}

func TestSuggestLocationsNoMatches(t *testing.T) {
	if got := SuggestLocations("zzz", DefaultCities); len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}
