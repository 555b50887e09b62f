package jsonfix_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"docstream/internal/jsonfix"
)

// --- Repair ---

func TestRepair_StripsMarkdownFences(t *testing.T) {
	in := "Here is the result:\n```json\n{\"a\": 1}\n```"
	out := jsonfix.Repair(in)
	assert.Equal(t, `{"a": 1}`, out)
	assert.True(t, json.Valid([]byte(out)))
}

func TestRepair_ClosesTruncatedObject(t *testing.T) {
	out := jsonfix.Repair(`{"name": "Alice", "tags": ["a", "b"`)
	assert.True(t, json.Valid([]byte(out)), "repaired: %s", out)

	var v map[string]interface{}
	assert.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "Alice", v["name"])
	assert.Equal(t, []interface{}{"a", "b"}, v["tags"])
}

func TestRepair_ClosesUnterminatedString(t *testing.T) {
	out := jsonfix.Repair(`{"name": "Ali`)
	assert.True(t, json.Valid([]byte(out)), "repaired: %s", out)

	var v map[string]interface{}
	assert.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "Ali", v["name"])
}

func TestRepair_DropsTrailingComma(t *testing.T) {
	out := jsonfix.Repair(`{"a": 1,`)
	assert.JSONEq(t, `{"a": 1}`, out)
}

func TestRepair_DanglingColonGetsNull(t *testing.T) {
	out := jsonfix.Repair(`{"a":`)
	assert.JSONEq(t, `{"a": null}`, out)
}

func TestRepair_DanglingKeyStaysBroken(t *testing.T) {
	// A key with no colon cannot be completed meaningfully; the repaired
	// form must still fail to parse so the previous snapshot is kept.
	out := jsonfix.Repair(`{"a": 1, "b"`)
	assert.False(t, json.Valid([]byte(out)), "repaired: %s", out)
}

func TestRepair_TrailingBackslashInString(t *testing.T) {
	out := jsonfix.Repair(`{"path": "C:\`)
	assert.True(t, json.Valid([]byte(out)), "repaired: %s", out)
}

func TestRepair_NoStructuralStart(t *testing.T) {
	out := jsonfix.Repair("plain prose with no json at all")
	assert.False(t, json.Valid([]byte(out)) && len(out) > 0 && (out[0] == '{' || out[0] == '['))
}

// --- Session ---

func TestSession_AcceptsGrowingSnapshots(t *testing.T) {
	s := jsonfix.NewSession()

	v, ok := s.Feed(`{"name": "Al`)
	assert.True(t, ok)
	assert.Equal(t, map[string]interface{}{"name": "Al"}, v)

	v, ok = s.Feed(`ice", "tags": ["x"`)
	assert.True(t, ok)
	m := v.(map[string]interface{})
	assert.Equal(t, "Alice", m["name"])
	assert.Equal(t, []interface{}{"x"}, m["tags"])
}

func TestSession_KeepsPreviousOnUnparsableGrowth(t *testing.T) {
	s := jsonfix.NewSession()

	_, ok := s.Feed(`{"a": 1`)
	assert.True(t, ok)

	// A dangling key makes both the strict and repaired parse fail; the
	// previous snapshot must survive untouched.
	v, ok := s.Feed(`, "b"`)
	assert.False(t, ok)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, v)
	assert.Equal(t, v, s.Current())

	// Completing the key resumes acceptance with everything intact.
	v, ok = s.Feed(`: 2}`)
	assert.True(t, ok)
	assert.Equal(t, map[string]interface{}{"a": float64(1), "b": float64(2)}, v)
}

func TestSession_IgnoresLeadingProse(t *testing.T) {
	s := jsonfix.NewSession()

	v, ok := s.Feed("Sure, here is the data: {\"total\": 42}")
	assert.True(t, ok)
	assert.Equal(t, map[string]interface{}{"total": float64(42)}, v)
}

func TestSession_ScalarTopLevelRejected(t *testing.T) {
	s := jsonfix.NewSession()

	_, ok := s.Feed(`42`)
	assert.False(t, ok)
	assert.Nil(t, s.Current())
}

func TestSession_FinalParsesWholeBuffer(t *testing.T) {
	s := jsonfix.NewSession()
	s.Feed("```json\n")
	s.Feed(`{"done": true}`)
	s.Feed("\n```")

	v, err := s.Final()
	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"done": true}, v)
}

func TestSession_FinalNonJSON(t *testing.T) {
	s := jsonfix.NewSession()
	s.Feed("I'm sorry, I cannot extract data from this document.")

	_, err := s.Final()
	assert.Error(t, err)

	var nonJSON *jsonfix.NonJSONError
	assert.True(t, errors.As(err, &nonJSON))
	assert.Contains(t, nonJSON.Raw, "cannot extract")
}

func TestSession_ArraysOnlyGrow(t *testing.T) {
	s := jsonfix.NewSession()

	_, ok := s.Feed(`{"items": [1, 2`)
	assert.True(t, ok)

	v, ok := s.Feed(`, 3]}`)
	assert.True(t, ok)
	m := v.(map[string]interface{})
	assert.Len(t, m["items"], 3)
}
