package llmjson_test

import (
	"testing"

	"github.com/speakmate/speakmate/internal/llmjson"
)

type payload struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestDecode_PlainJSON(t *testing.T) {
	t.Parallel()

	var p payload
	if err := llmjson.Decode(`{"name":"a","items":["x","y"]}`, &p); err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if p.Name != "a" || len(p.Items) != 2 {
		t.Errorf("Decode: got %+v", p)
	}
}

func TestDecode_FencedJSON(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"json fence":  "```json\n{\"name\":\"b\"}\n```",
		"bare fence":  "```\n{\"name\":\"b\"}\n```",
		"whitespace":  "  \n```json\n{\"name\":\"b\"}\n```  \n",
		"no trailing": "```json\n{\"name\":\"b\"}",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			var p payload
			if err := llmjson.Decode(content, &p); err != nil {
				t.Fatalf("Decode: unexpected error: %v", err)
			}
			if p.Name != "b" {
				t.Errorf("Decode: name = %q, want %q", p.Name, "b")
			}
		})
	}
}

func TestDecode_Unparseable(t *testing.T) {
	t.Parallel()

	var p payload
	if err := llmjson.Decode("I could not produce JSON, sorry!", &p); err == nil {
		t.Fatal("Decode: expected error for prose content")
	}
}

func TestStripFences_Passthrough(t *testing.T) {
	t.Parallel()

	if got := llmjson.StripFences(`{"a":1}`); got != `{"a":1}` {
		t.Errorf("StripFences: got %q", got)
	}
}
