package jsonextract

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestExtractDirectObject(t *testing.T) {
	value, ok := Extract(`{"a": 1}`)
	if !ok {
		t.Fatal("expected value")
	}
	obj, isMap := value.(map[string]any)
	if !isMap || obj["a"] != json.Number("1") {
		t.Fatalf("unexpected value %#v", value)
	}
}

func TestExtractObjectInsideProse(t *testing.T) {
	value, ok := Extract(`Sure! Here is the result: {"a": 1}`)
	if !ok {
		t.Fatal("expected value")
	}
	obj, isMap := value.(map[string]any)
	if !isMap || obj["a"] != json.Number("1") {
		t.Fatalf("unexpected value %#v", value)
	}
}

func TestExtractCodeFence(t *testing.T) {
	value, ok := Extract("```json\n{\"phase\": \"PHASE2\", \"arms\": [1, 2]}\n```")
	if !ok {
		t.Fatal("expected value from fenced payload")
	}
	obj := value.(map[string]any)
	if obj["phase"] != "PHASE2" {
		t.Fatalf("unexpected phase %#v", obj["phase"])
	}
}

func TestExtractNoJSON(t *testing.T) {
	if value, ok := Extract("no json here"); ok {
		t.Fatalf("expected absence, got %#v", value)
	}
	if _, ok := Extract("   "); ok {
		t.Fatal("expected absence for blank input")
	}
	if _, ok := Extract("} backwards {"); ok {
		t.Fatal("expected absence for reversed braces")
	}
}

func TestExtractDisjointObjectsDoesNotPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Extract panicked: %v", r)
		}
	}()
	// Greedy span captures `{"a": 1} and also {"b": 2}`, which is not valid JSON.
	if value, ok := Extract(`{"a": 1} and also {"b": 2}`); ok {
		t.Logf("recovered %#v", value)
	}
}

func TestExtractScalarsAndArrays(t *testing.T) {
	value, ok := Extract(" [1, 2, 3] ")
	if !ok {
		t.Fatal("expected array")
	}
	if arr, isArr := value.([]any); !isArr || len(arr) != 3 {
		t.Fatalf("unexpected array %#v", value)
	}
	value, ok = Extract("true")
	if !ok || value != true {
		t.Fatalf("expected true, got %#v (ok=%v)", value, ok)
	}
}

func TestDecodeIntoStruct(t *testing.T) {
	var target struct {
		Enrollment int    `json:"enrollment"`
		Phase      string `json:"phase"`
	}
	err := Decode(`The extracted fields are {"enrollment": 120, "phase": "PHASE3"}. Let me know!`, &target)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if target.Enrollment != 120 || target.Phase != "PHASE3" {
		t.Fatalf("unexpected target %#v", target)
	}
}

func TestDecodeReportsNoJSON(t *testing.T) {
	var target map[string]any
	err := Decode("nothing useful", &target)
	if !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
	if !strings.Contains(err.Error(), "nothing useful") {
		t.Fatalf("expected snippet in error, got %q", err.Error())
	}
}

func TestSnippetTruncates(t *testing.T) {
	long := strings.Repeat("x ", 200)
	got := Snippet(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != 163 {
		t.Fatalf("unexpected snippet %q", got)
	}
	if Snippet("") != "<empty>" {
		t.Fatal("expected placeholder for empty snippet")
	}
}
