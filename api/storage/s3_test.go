package storage

import (
	"strings"
	"testing"
	"time"
)

func TestExportKey(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("JST", 9*3600))
	got := ExportKey(at)
	if got != "history/20260303T200607Z.json" {
		t.Errorf("ExportKey = %q", got)
	}
	later := ExportKey(at.Add(time.Minute))
	if strings.Compare(got, later) >= 0 {
		t.Errorf("keys should sort chronologically: %s >= %s", got, later)
	}
}

func TestNewClient_RequiresEndpointAndBucket(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"no endpoint", Config{Bucket: "b"}, false},
		{"no bucket", Config{Endpoint: "localhost:9000"}, false},
		{"ok", Config{Endpoint: "localhost:9000", Bucket: "b"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg)
			if (err == nil) != tt.ok {
				t.Fatalf("err = %v, want ok=%v", err, tt.ok)
			}
			if tt.ok && c.Bucket() != "b" {
				t.Errorf("bucket = %q", c.Bucket())
			}
		})
	}
}

func TestExportKeyFor(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"20260303T200607Z.json", "history/20260303T200607Z.json", true},
		{"", "", false},
		{"../secrets.json", "", false},
		{"nested/a.json", "", false},
		{"notes.txt", "", false},
	}
	for _, tt := range tests {
		got, err := ExportKeyFor(tt.name)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ExportKeyFor(%q) = %q, %v", tt.name, got, err)
		}
	}
}

func TestSortNewestFirst(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	objs := []Object{
		{Key: ExportKey(at)},
		{Key: ExportKey(at.Add(48 * time.Hour))},
		{Key: ExportKey(at.Add(time.Hour))},
	}
	SortNewestFirst(objs)
	for i := 1; i < len(objs); i++ {
		if objs[i-1].Key < objs[i].Key {
			t.Fatalf("not newest first: %v", objs)
		}
	}
	if objs[0].Key != "history/20260103T000000Z.json" {
		t.Errorf("newest = %s", objs[0].Key)
	}
}
