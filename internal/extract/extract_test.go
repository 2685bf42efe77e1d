package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFreeTextVerbatim(t *testing.T) {
	e := New(time.Second)
	out, err := e.Extract(context.Background(), "buy when RSI dips below 30, sell above 70")
	require.NoError(t, err)
	assert.Equal(t, "buy when RSI dips below 30, sell above 70", out)
}

func TestVideoIDForms(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":      "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                     "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/abc123XYZ_-":       "abc123XYZ_-",
		"https://www.youtube.com/embed/abc123XYZ_-?t=10":   "abc123XYZ_-",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42": "dQw4w9WgXcQ",
	}
	for raw, want := range cases {
		got, err := videoID(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := videoID("https://www.youtube.com/")
	assert.Error(t, err)
}

func TestParseTimedText(t *testing.T) {
	raw := []byte(`{"events":[
		{"segs":[{"utf8":"hello "},{"utf8":"world"}]},
		{"tStartMs":100},
		{"segs":[{"utf8":"\n"},{"utf8":"again"}]}
	]}`)
	assert.Equal(t, "hello world again", parseTimedText(raw))
	assert.Equal(t, "", parseTimedText([]byte(`{"events":[]}`)))
}

func TestExtractYouTubeTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dQw4w9WgXcQ", r.URL.Query().Get("v"))
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		w.Write([]byte(`{"events":[{"segs":[{"utf8":"momentum"},{"utf8":"breakout"}]}]}`))
	}))
	defer srv.Close()

	e := New(time.Second)
	e.timedTextBase = srv.URL

	out, err := e.Extract(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Contains(t, out, "Transcript of YouTube video dQw4w9WgXcQ")
	assert.Contains(t, out, "momentum breakout")
}

func TestExtractYouTubeUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"events":[]}`))
	}))
	defer srv.Close()

	e := New(time.Second)
	e.timedTextBase = srv.URL

	_, err := e.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	assert.True(t, errors.Is(err, ErrContentUnavailable))
}

func TestExtractPDFDownloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := New(time.Second)
	_, err := e.Extract(context.Background(), srv.URL+"/paper.PDF")
	assert.True(t, errors.Is(err, ErrContentUnavailable))
}

func TestExtractPDFGarbageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a pdf at all"))
	}))
	defer srv.Close()

	e := New(time.Second)
	_, err := e.Extract(context.Background(), srv.URL+"/paper.pdf")
	assert.True(t, errors.Is(err, ErrContentUnavailable))
}
