package storage

import (
	"strings"
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 7, 22, 0, 0, 0, time.UTC)

	key := ObjectKey("bands", "Logo.PNG", "image/png", at)
	if !strings.HasPrefix(key, "bands/2026/03/07/") || !strings.HasSuffix(key, ".png") {
		t.Errorf("unexpected key %q", key)
	}

	key = ObjectKey("", "", "image/webp", at)
	if !strings.HasPrefix(key, "2026/03/07/") || !strings.HasSuffix(key, ".webp") {
		t.Errorf("unexpected key %q", key)
	}

	if ObjectKey("p", "a.jpg", "", at) == ObjectKey("p", "a.jpg", "", at) {
		t.Error("keys must be unique per upload")
	}
}

func TestURLFor(t *testing.T) {
	s := NewS3Storage(S3Config{
		Endpoint:  "http://localhost:9000",
		Bucket:    "gigfinder",
		Region:    "us-east-1",
		PublicURL: "http://localhost:9000/gigfinder/",
	})
	if got := s.URLFor("bands/a.png"); got != "http://localhost:9000/gigfinder/bands/a.png" {
		t.Errorf("got %q", got)
	}
}
