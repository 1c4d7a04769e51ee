package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestReadProducts(t *testing.T) {
	records, err := readProducts(filepath.Join("testdata", "products.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if _, ok := records[0]["price"].(json.Number); !ok {
		t.Errorf("expected numbers decoded as json.Number, got %T", records[0]["price"])
	}
	if records[2]["id"] != "bk-3" {
		t.Errorf("unexpected id %v", records[2]["id"])
	}
}

func TestReadProducts_Errors(t *testing.T) {
	if _, err := readProducts(filepath.Join("testdata", "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"id": 1}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readProducts(path); err == nil {
		t.Error("expected error for a non-array document")
	}
}
