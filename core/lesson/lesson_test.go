package lesson

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestURLHiddenUnlessFull(t *testing.T) {
	l := Lesson{ID: "l1", Name: "Intro", URL: "https://cdn.example.com/l1.mp4"}

	b, err := json.Marshal(l)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "cdn.example.com") {
		t.Fatalf("lesson leaks its url: %s", b)
	}

	b, err = json.Marshal(Full{Lesson: l, URL: l.URL})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"url":"https://cdn.example.com/l1.mp4"`) {
		t.Fatalf("full view misses the url: %s", b)
	}
}
