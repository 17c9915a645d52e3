package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(DefaultTemplates(), DefaultThreshold)
	require.NoError(t, err)
	return m
}

func TestResolveLiteral(t *testing.T) {
	m := newDefaultMatcher(t)

	tests := []struct {
		text string
		tag  string
		rest string
	}{
		{"open file", OpenFile, ""},
		{"could you please OPEN THE FILE for me", OpenFile, "could you please for me"},
		{"  search youtube for cats  ", YoutubeSearch, "cats"},
		{"find on youtube lofi music", YoutubeSearch, "lofi music"},
		{"search in file please", SearchFile, "please"},
		{"search google for golang generics", GoogleSearch, "golang generics"},
		{"search for weather in london", GoogleSearch, "weather in london"},
		{"launch calculator", Calculator, ""},
		{"tell me the time", Time, ""},
		{"ok goodbye", Exit, "ok"},
		{"search youtube", YoutubeSearch, ""},
		{"youtube search for cats", YoutubeSearch, "cats"},
		{"search for", GoogleSearch, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := m.Resolve(tt.text)
			assert.Equal(t, tt.tag, got.Tag)
			assert.Equal(t, 1.0, got.Confidence)
			assert.Equal(t, tt.rest, got.Rest)
		})
	}
}

func TestSearchNamingAnAppStaysSearch(t *testing.T) {
	m := newDefaultMatcher(t)

	tests := []struct {
		text string
		tag  string
		rest string
	}{
		{"search youtube for chrome extensions", YoutubeSearch, "chrome extensions"},
		{"search youtube for notepad tutorial", YoutubeSearch, "notepad tutorial"},
		{"search google for calculator apps", GoogleSearch, "calculator apps"},
		{"find chrome themes", GoogleSearch, "chrome themes"},
		{"open chrome", Chrome, ""},
		{"start notepad", Notepad, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := m.Resolve(tt.text)
			assert.Equal(t, tt.tag, got.Tag)
			assert.Equal(t, tt.rest, got.Rest)
		})
	}
}

func TestResolveEmpty(t *testing.T) {
	m := newDefaultMatcher(t)

	for _, text := range []string{"", "   ", "\n\t"} {
		got := m.Resolve(text)
		assert.False(t, got.Resolved())
		assert.Equal(t, 0.0, got.Confidence)
	}
}

func TestResolveFuzzy(t *testing.T) {
	m := newDefaultMatcher(t)

	got := m.Resolve("calculater")
	assert.Equal(t, Calculator, got.Tag)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Empty(t, got.Phrase)

	got = m.Resolve("xyz")
	assert.False(t, got.Resolved())
}

func TestResolveFuzzyTieGoesToFirstTemplate(t *testing.T) {
	m, err := NewMatcher([]Template{
		{Tag: "first", Phrases: []string{"abcd"}},
		{Tag: "second", Phrases: []string{"abce"}},
	}, DefaultThreshold)
	require.NoError(t, err)

	for range 10 {
		got := m.Resolve("abcx")
		assert.Equal(t, "first", got.Tag)
		assert.InDelta(t, 0.75, got.Confidence, 1e-9)
	}
}

func TestThresholdIsConfigurable(t *testing.T) {
	templates := []Template{{Tag: "alpha", Phrases: []string{"abcdefghij"}}}

	strict, err := NewMatcher(templates, DefaultThreshold)
	require.NoError(t, err)
	loose, err := NewMatcher(templates, AssistantThreshold)
	require.NoError(t, err)

	// Four substitutions out of ten: ratio exactly 0.6.
	assert.False(t, strict.Resolve("abcdefwxyz").Resolved())
	assert.Equal(t, "alpha", loose.Resolve("abcdefwxyz").Tag)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 1.0, Ratio("same", "same"))
	assert.Equal(t, 0.0, Ratio("abc", ""))
	assert.InDelta(t, 2.0/3.0, Ratio("abc", "abd"), 1e-9)
	assert.InDelta(t, 5.0/6.0, Ratio("привет", "прилет"), 1e-9)
}

func TestNewMatcherValidation(t *testing.T) {
	_, err := NewMatcher(nil, DefaultThreshold)
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	_, err = NewMatcher([]Template{{Tag: "a", Phrases: []string{"x"}}, {Tag: "a", Phrases: []string{"y"}}}, DefaultThreshold)
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	_, err = NewMatcher([]Template{{Tag: "a", Phrases: []string{"  "}}}, DefaultThreshold)
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	_, err = NewMatcher(DefaultTemplates(), 1)
	assert.Error(t, err)
}

func TestMatcherCopiesTemplates(t *testing.T) {
	templates := []Template{{Tag: "alpha", Phrases: []string{"Hello There"}}}
	m, err := NewMatcher(templates, DefaultThreshold)
	require.NoError(t, err)

	templates[0].Phrases[0] = "changed"

	assert.Equal(t, "alpha", m.Resolve("well hello there").Tag)
	assert.Equal(t, []string{"alpha"}, m.Tags())
}

type stubClassifier struct {
	tag   string
	err   error
	calls int
}

func (s *stubClassifier) Classify(_ context.Context, _ string, _ []string) (string, error) {
	s.calls++
	return s.tag, s.err
}

func TestResolverFallback(t *testing.T) {
	m := newDefaultMatcher(t)
	ctx := context.Background()

	stub := &stubClassifier{tag: Time}
	r := NewResolver(m, stub)

	got := r.Resolve(ctx, "what hour is it over there")
	assert.Equal(t, Time, got.Tag)
	assert.Equal(t, 1, stub.calls)

	got = r.Resolve(ctx, "open file")
	assert.Equal(t, OpenFile, got.Tag)
	assert.Equal(t, 1, stub.calls, "literal hit must not reach the classifier")

	got = r.Resolve(ctx, "")
	assert.False(t, got.Resolved())
	assert.Equal(t, 1, stub.calls)

	stub.tag = "dance"
	assert.False(t, r.Resolve(ctx, "what hour is it over there").Resolved())

	stub.err = errors.New("offline")
	assert.False(t, r.Resolve(ctx, "what hour is it over there").Resolved())
}
