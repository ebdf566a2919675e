package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Comparisons(t *testing.T) {
	tests := []struct {
		query string
		want  Criterion
	}{
		{"title = 'Hello'", Equals("title", "Hello")},
		{`title = "Hello"`, Equals("title", "Hello")},
		{"views != 3", NotEquals("views", int64(3))},
		{"rating > 1.5", GreaterThan("rating", 1.5)},
		{"rating >= -2", GreaterThanOrEqual("rating", int64(-2))},
		{"views < 10", LessThan("views", int64(10))},
		{"views <= 10", LessThanOrEqual("views", int64(10))},
		{"title ^= 'He'", StartsWith("title", "He")},
		{"title $= 'lo'", EndsWith("title", "lo")},
		{"title *= 'ell'", Contains("title", "ell")},
		{"hidden = true", Equals("hidden", true)},
		{"hidden = FALSE", Equals("hidden", false)},
		{"title =~ 'hello'", Equals("title", "hello").IgnoreCase()},
		{"title ^=~ 'he'", StartsWith("title", "he").IgnoreCase()},
		{`title = 'it\'s'`, Equals("title", "it's")},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := Parse(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Precedence(t *testing.T) {
	got, err := Parse("a = 1 OR b = 2 AND c = 3")
	require.NoError(t, err)
	assert.Equal(t, Or{Criteria: []Criterion{
		Equals("a", int64(1)),
		And{Criteria: []Criterion{Equals("b", int64(2)), Equals("c", int64(3))}},
	}}, got)

	got, err = Parse("(a = 1 OR b = 2) AND NOT c = 3")
	require.NoError(t, err)
	assert.Equal(t, And{Criteria: []Criterion{
		Or{Criteria: []Criterion{Equals("a", int64(1)), Equals("b", int64(2))}},
		Not{Criterion: Equals("c", int64(3))},
	}}, got)

	got, err = Parse("a = 1 AND b = 2 AND c = 3")
	require.NoError(t, err)
	assert.Len(t, got.(And).Criteria, 3)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		query   string
		wantErr string
	}{
		{"", "must not be empty"},
		{"   ", "must not be empty"},
		{"title", "expecting an operator"},
		{"title =", "expecting a value"},
		{"title = 'open", "unterminated string"},
		{"(title = 'x'", "closing parenthesis"},
		{"title = 'x')", `unexpected ")"`},
		{"title # 'x'", "unexpected character"},
		{"views ^= 3", "needs a string value"},
		{"hidden > true", "does not apply to booleans"},
		{"AND title = 'x'", "expecting a property name"},
		{"title = 'x' AND", "unexpected end"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("") })
	assert.NotPanics(t, func() { MustParse("a = 1") })
}
