package ingest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pledgewatch/internal/domain"
	"pledgewatch/pkg/testutil"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Government Newswire</title>
    <item>
      <title>Minister announces housing accord</title>
      <link>https://news.example/housing-accord</link>
      <description>A new federal-provincial housing accord.</description>
      <pubDate>Sun, 01 Mar 2026 09:00:00 GMT</pubDate>
      <category>Housing</category>
    </item>
    <item>
      <title>Clean fuel consultation opens</title>
      <link>https://news.example/clean-fuel</link>
      <description>Consultation on clean fuel standards.</description>
      <pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestFeedFetcher(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	fetcher := NewFeedFetcher("pledgewatch/1.0 (ops@pledgewatch.example)")
	items, err := fetcher.Fetch(testutil.Context(t), srv.URL)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "pledgewatch/1.0 (ops@pledgewatch.example)", gotUA)

	ev, err := NormalizeItem(domain.SourceNews, items[0])
	require.NoError(t, err)
	assert.Equal(t, "Minister announces housing accord", ev.Title)
	assert.Equal(t, "https://news.example/housing-accord", ev.URL)
	assert.Equal(t, []string{"Housing"}, ev.Departments)
	assert.Equal(t, 2026, ev.Date.Year())

	reg, err := NormalizeItem(domain.SourceRegulatory, items[1])
	require.NoError(t, err)
	assert.Equal(t, "Clean fuel consultation opens", reg.Title)
	assert.Equal(t, "https://news.example/clean-fuel", reg.URL)
}

func TestFeedFetcherUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewFeedFetcher("pledgewatch/1.0").Fetch(testutil.Context(t), srv.URL)
	assert.Error(t, err)
}

func TestFeedFetcherBadXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a feed"))
	}))
	defer srv.Close()

	_, err := NewFeedFetcher("pledgewatch/1.0").Fetch(testutil.Context(t), srv.URL)
	assert.Error(t, err)
}
