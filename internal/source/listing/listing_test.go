package listing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/crawler"
	collyfetcher "github.com/JakeFAU/sermon-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/sermon-harvester/internal/naming"
	"github.com/JakeFAU/sermon-harvester/internal/source"
	"github.com/JakeFAU/sermon-harvester/internal/textnorm"
)

const itemPage = `<html><body>
<h1> Love Never Fails </h1>
<dl class="sermon-meta">
  <dt>Speaker:</dt><dd>John Smith</dd>
  <dt>Scripture</dt><dd>1 Corinthians 13:1 - 1 Corinthians 13:13</dd>
  <dt>Date</dt><dd>May 7, 2023</dd>
  <dt>Topics</dt><dd>Love</dd><dd>Faith</dd>
  <dt>Campus</dt><dd>North</dd>
</dl>
<audio controls><source src="/media/love.mp3" type="audio/mpeg"></audio>
<a class="file-download" href="/files/notes.pdf">Notes</a>
</body></html>`

const mappedPage = `<html><body>
<h1>Rooted</h1>
<dl class="sermon-meta">
  <dt>Speaker</dt><dd>Mia Chen</dd>
  <dt>Audio</dt><dd>/media/rooted.mp3</dd>
  <dt>Downloads</dt><dd>../files/guide.pdf</dd>
</dl>
<a class="file-download" href="/files/slides.pdf">Slides</a>
</body></html>`

func listPage(links ...string) string {
	body := `<html><body><ul class="sermon-list">`
	for _, l := range links {
		body += fmt.Sprintf(`<li><a class="sermon-link" href="%s">x</a></li>`, l)
	}
	return body + `</ul></body></html>`
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/sermons", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(listPage("/sermons/love", "/sermons/hope")))
		case "2":
			_, _ = w.Write([]byte(listPage("/sermons/hope", "/sermons/joy#top")))
		default:
			_, _ = w.Write([]byte(listPage()))
		}
	})
	mux.HandleFunc("/sermons/love", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(itemPage))
	})
	mux.HandleFunc("/sermons/rooted", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(mappedPage))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newAdapter() *Adapter {
	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
	kit := source.Kit{
		Name:      "grace",
		Fetcher:   fetcher,
		Paginator: &crawler.Paginator{Fetcher: fetcher, MaxPages: 10},
		Namer:     naming.New(textnorm.Default()),
		Logger:    zap.NewNop(),
	}
	return New(kit, Rules{})
}

func TestListItemLinksWalksPages(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	links, err := newAdapter().ListItemLinks(context.Background(), srv.URL+"/sermons")
	require.NoError(t, err)
	assert.Equal(t, []string{
		srv.URL + "/sermons/love",
		srv.URL + "/sermons/hope",
		srv.URL + "/sermons/joy",
	}, links)
}

func TestParseItem(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	rec, err := newAdapter().ParseItem(context.Background(), srv.URL+"/sermons/love")
	require.NoError(t, err)

	assert.Equal(t, "Love Never Fails", rec.Title)
	assert.Equal(t, "John Smith", rec.Teacher)
	assert.Equal(t, "1 Corinthians 13:1-13", rec.Text)
	assert.Equal(t, "Love; Faith", rec.Topics)
	assert.Equal(t, "2023-05-07", rec.DateString())
	assert.Equal(t, "grace", rec.Source)
	assert.Equal(t, srv.URL+"/sermons/love", rec.Page)
	assert.Equal(t, srv.URL+"/media/love.mp3", rec.Audio)
	assert.Equal(t, srv.URL+"/files/notes.pdf", rec.Files)
	assert.Equal(t, "Campus: North", rec.Extra)
	assert.Equal(t, "2023-05-07 - 1 Corinthians 13_1-13 - Love Never Fails - John Smith", rec.Name)
}

func TestParseItemResolvesMappedLinks(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	rec, err := newAdapter().ParseItem(context.Background(), srv.URL+"/sermons/rooted")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/media/rooted.mp3", rec.Audio)
	assert.Equal(t, srv.URL+"/files/guide.pdf; "+srv.URL+"/files/slides.pdf", rec.Files)
}

func TestParseItemMissingPage(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	_, err := newAdapter().ParseItem(context.Background(), srv.URL+"/sermons/gone")
	require.Error(t, err)
}

func TestNewKeepsConfiguredRules(t *testing.T) {
	t.Parallel()

	a := New(source.Kit{Name: "x"}, Rules{TitleSelector: "h2.title", DateLayouts: []string{"02.01.2006"}})
	assert.Equal(t, "h2.title", a.rules.TitleSelector)
	assert.Equal(t, DefaultRules().LabelSelector, a.rules.LabelSelector)
	assert.Equal(t, []string{"02.01.2006"}, a.rules.DateLayouts)
	assert.Equal(t, "x", a.Name())
}
