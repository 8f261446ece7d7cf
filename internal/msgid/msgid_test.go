package msgid

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "abc@x", Normalize("  <abc@x> "))
	assert.Equal(t, "abc@x", Normalize("abc@x"))
	assert.Equal(t, "", Normalize("<>"))
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []string
	}{
		{"bracketed", "<a@x> <b@x>", []string{"a@x", "b@x"}},
		{"folded", "<a@x>\r\n\t<b@x>", []string{"a@x", "b@x"}},
		{"no separator", "<a@x><b@x>", []string{"a@x", "b@x"}},
		{"duplicates", "<a@x> <b@x> <a@x>", []string{"a@x", "b@x"}},
		{"bare", "a@x b@x", []string{"a@x", "b@x"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Extract(tt.header)); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := []string{"a", "b"}
	got := Merge(base, "<b>", "c", "")
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"a", "b"}, base)

	assert.Equal(t, []string{"p"}, Merge(nil, "p"))
}

func TestNewAndSynthesize(t *testing.T) {
	id := New("example.com")
	assert.True(t, strings.HasSuffix(id, "@example.com"))
	assert.NotEqual(t, id, New("example.com"))
	assert.True(t, strings.HasSuffix(New(""), "@localhost"))

	assert.True(t, strings.HasPrefix(Synthesize(), "gen-"))
	assert.Equal(t, "<a@x>", Bracket("a@x"))
}
