package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	long := strings.Repeat("a", 400)

	tests := []struct {
		name string
		raw  string
		want Envelope
	}{
		{
			name: "empty body",
			raw:  "",
			want: Envelope{Title: "alerts"},
		},
		{
			name: "whitespace only",
			raw:  " \n\t ",
			want: Envelope{Title: "alerts"},
		},
		{
			name: "plain text",
			raw:  "hello",
			want: Envelope{Title: "alerts", Body: "hello"},
		},
		{
			name: "plain text keeps surrounding whitespace",
			raw:  "  disk full  ",
			want: Envelope{Title: "alerts", Body: "  disk full  "},
		},
		{
			name: "long plain text is truncated",
			raw:  long,
			want: Envelope{Title: "alerts", Body: strings.Repeat("a", 297) + "..."},
		},
		{
			name: "full json",
			raw:  `{"title":"Build","body":"passed","icon":"/ok.png","data":"42"}`,
			want: Envelope{Title: "Build", Body: "passed", Icon: "/ok.png", Data: "42"},
		},
		{
			name: "json field names are case insensitive",
			raw:  `{"TITLE":"Build","Body":"passed"}`,
			want: Envelope{Title: "Build", Body: "passed"},
		},
		{
			name: "json without title uses fallback",
			raw:  `  {"body":"passed"}`,
			want: Envelope{Title: "alerts", Body: "passed"},
		},
		{
			name: "json null title uses fallback",
			raw:  `{"title":null,"body":"x"}`,
			want: Envelope{Title: "alerts", Body: "x"},
		},
		{
			name: "json empty title is kept",
			raw:  `{"title":""}`,
			want: Envelope{Title: ""},
		},
		{
			name: "empty json object",
			raw:  `{}`,
			want: Envelope{Title: "alerts"},
		},
		{
			name: "json body is not truncated",
			raw:  `{"body":"` + long + `"}`,
			want: Envelope{Title: "alerts", Body: long},
		},
		{
			name: "malformed json falls back to text",
			raw:  `{"title": "oops"`,
			want: Envelope{Title: "alerts", Body: `{"title": "oops"`},
		},
		{
			name: "wrong field type falls back to text",
			raw:  `{"body": 12}`,
			want: Envelope{Title: "alerts", Body: `{"body": 12}`},
		},
		{
			name: "trailing garbage falls back to text",
			raw:  `{"body":"x"} trailing`,
			want: Envelope{Title: "alerts", Body: `{"body":"x"} trailing`},
		},
		{
			name: "json array is plain text",
			raw:  `["a"]`,
			want: Envelope{Title: "alerts", Body: `["a"]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize([]byte(tt.raw), "alerts", MaxBodyLength))
		})
	}
}

func TestNormalize_MalformedLongJSON(t *testing.T) {
	raw := "{" + strings.Repeat("x", 500)

	env := Normalize([]byte(raw), "alerts", MaxBodyLength)
	assert.Equal(t, "alerts", env.Title)
	assert.Equal(t, MaxBodyLength, utf8.RuneCountInString(env.Body))
	assert.True(t, strings.HasSuffix(env.Body, "..."))
	assert.Equal(t, raw[:297], strings.TrimSuffix(env.Body, "..."))
}

func TestNormalize_NoLimit(t *testing.T) {
	long := strings.Repeat("b", 1000)
	env := Normalize([]byte(long), "alerts", 0)
	assert.Equal(t, long, env.Body)
}

func TestTruncate(t *testing.T) {
	for n := 0; n <= 600; n += 50 {
		s := strings.Repeat("z", n)
		got := Truncate(s, MaxBodyLength)
		if n <= MaxBodyLength {
			assert.Equal(t, s, got, "bodies up to the limit are unchanged (n=%d)", n)
			continue
		}
		assert.Len(t, got, MaxBodyLength, "n=%d", n)
		assert.True(t, strings.HasSuffix(got, "..."), "n=%d", n)
	}

	assert.Equal(t, strings.Repeat("z", 300), Truncate(strings.Repeat("z", 300), 300))
	assert.Equal(t, strings.Repeat("z", 297)+"...", Truncate(strings.Repeat("z", 301), 300))
}

func TestTruncate_CountsRunes(t *testing.T) {
	s := strings.Repeat("é", 301)
	got := Truncate(s, MaxBodyLength)
	require.True(t, utf8.ValidString(got))
	assert.Equal(t, MaxBodyLength, utf8.RuneCountInString(got))
	assert.Equal(t, strings.Repeat("é", 297)+"...", got)
}

func TestEnvelope_Payload(t *testing.T) {
	p, err := Envelope{Title: "t", Body: "b"}.Payload()
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"t","body":"b","icon":"","data":""}`, string(p))
}
