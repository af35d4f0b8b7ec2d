package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalWords(t *testing.T) {
	src := NewLocalWords()
	for _, lang := range []string{"en", "es", "fr"} {
		w, err := src.Generate(context.Background(), lang)
		require.NoError(t, err)
		assert.NotEmpty(t, w.Word)
		assert.NotEmpty(t, w.Category)
	}
}

func TestHTTPWords(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("lang") {
		case "en":
			w.Write([]byte(`{"word":" router ","category":"technology"}`))
		case "bad":
			w.Write([]byte(`{"word":"","category":""}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer ts.Close()

	src := &HTTPWords{BaseURL: ts.URL}

	w, err := src.Generate(context.Background(), "en")
	require.NoError(t, err)
	assert.Equal(t, Word{Word: "ROUTER", Category: "TECHNOLOGY"}, w)

	_, err = src.Generate(context.Background(), "bad")
	assert.Error(t, err)

	_, err = src.Generate(context.Background(), "es")
	assert.Error(t, err)
}

type failingSource struct{}

func (failingSource) Generate(context.Context, string) (Word, error) {
	return Word{}, errors.New("unavailable")
}

func TestWithFallback(t *testing.T) {
	src := WithFallback(failingSource{})
	w, err := src.Generate(context.Background(), "es")
	require.NoError(t, err)
	assert.NotEmpty(t, w.Word, "fallback list serves when the primary fails")
}
