package catalog

import (
	"sort"
	"testing"
)

func names(descs []ServiceDescriptor) []string {
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.Name
	}
	sort.Strings(out)
	return out
}

func testCatalog() *Catalog {
	return New([]ServiceDescriptor{
		{Name: "hub-ca-auth"},
		{Name: "hub-us-auth"},
		{Name: "hub-na-auth"},
		{Name: "hub-ca-edr-proxy-service", AlternateName: "edr-proxy-service"},
		{Name: "hub-us-edr-proxy-service", AlternateName: "edr-proxy-service"},
		{Name: "standalone-tool"},
	})
}

func TestResolveExactName(t *testing.T) {
	cat := testCatalog()
	got := names(cat.Resolve("hub-ca-auth", ""))
	if len(got) != 1 || got[0] != "hub-ca-auth" {
		t.Fatalf("got %v", got)
	}
}

func TestResolveExactAlternate(t *testing.T) {
	cat := testCatalog()
	got := names(cat.Resolve("edr-proxy-service", ""))
	want := []string{"hub-ca-edr-proxy-service", "hub-us-edr-proxy-service"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestResolveBaseName(t *testing.T) {
	cat := testCatalog()
	got := names(cat.Resolve("auth", ""))
	want := []string{"hub-ca-auth", "hub-na-auth", "hub-us-auth"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestResolveLocaleFilter(t *testing.T) {
	cat := testCatalog()
	got := names(cat.Resolve("auth", "ca"))
	if len(got) != 1 || got[0] != "hub-ca-auth" {
		t.Fatalf("got %v", got)
	}
}

func TestResolveLocaleNA(t *testing.T) {
	cat := testCatalog()
	got := names(cat.Resolve("auth", "na"))
	if len(got) != 1 || got[0] != "hub-na-auth" {
		t.Fatalf("got %v", got)
	}
}

func TestResolveSubstring(t *testing.T) {
	cat := testCatalog()
	got := names(cat.Resolve("edr-proxy", ""))
	want := []string{"hub-ca-edr-proxy-service", "hub-us-edr-proxy-service"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestResolveEmpty(t *testing.T) {
	cat := testCatalog()
	got := cat.Resolve("does-not-exist-anywhere", "")
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}

func TestSuggestReturnsUpToFive(t *testing.T) {
	cat := testCatalog()
	got := cat.Suggest("hub-ca-aut")
	if len(got) == 0 || len(got) > 5 {
		t.Fatalf("expected 1-5 suggestions, got %d: %v", len(got), got)
	}
	if got[0] != "hub-ca-auth" {
		t.Fatalf("expected closest match first, got %v", got)
	}
}
