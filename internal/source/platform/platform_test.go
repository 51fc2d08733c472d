package platform

import (
	"context"
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

const payloadPage = `<html><body>
<script type="application/json" data-sermon>
{
  "title": "The Good Shepherd",
  "speakers": [{"name": "Ana Ruiz"}, {"name": "Tom Lee"}],
  "passages": ["John 10:1 - John 10:18", "Psalm 23"],
  "topics": ["Jesus", "Care"],
  "date": "2024-01-14",
  "media": {"audio": {"url": "/cdn/shepherd.m4a"}},
  "attachments": []
}
</script>
</body></html>`

const attachmentsPage = `<html><body>
<script type="application/json" data-sermon>
{
  "title": "Living Water",
  "media": {"audio": {"url": "https://cdn.example/water.mp3"}},
  "attachments": [{"url": "/files/notes.pdf"}, {"url": "handout.docx"}]
}
</script>
</body></html>`

func newAdapter(rules Rules) *Adapter {
	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
	return New(source.Kit{
		Name:      "hosted",
		Fetcher:   fetcher,
		Paginator: &crawler.Paginator{Fetcher: fetcher, MaxPages: 5},
		Namer:     naming.New(textnorm.Default()),
		Logger:    zap.NewNop(),
	}, rules)
}

func TestParseItemMapsPayload(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/media/shepherd", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(payloadPage))
	})
	mux.HandleFunc("/media/empty", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>nothing here</p></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newAdapter(Rules{})
	rec, err := a.ParseItem(context.Background(), srv.URL+"/media/shepherd")
	require.NoError(t, err)
	assert.Equal(t, "The Good Shepherd", rec.Title)
	assert.Equal(t, "Ana Ruiz; Tom Lee", rec.Teacher)
	assert.Equal(t, "John 10:1-18; Psalm 23", rec.Text)
	assert.Equal(t, "Jesus; Care", rec.Topics)
	assert.Equal(t, "2024-01-14", rec.DateString())
	assert.Equal(t, srv.URL+"/cdn/shepherd.m4a", rec.Audio)
	assert.Empty(t, rec.Files)
	assert.Equal(t, "2024-01-14 - John 10_1-18; Psalm 23 - The Good Shepherd - Ana Ruiz; Tom Lee", rec.Name)

	_, err = a.ParseItem(context.Background(), srv.URL+"/media/empty")
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestParseItemResolvesAttachments(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/media/water", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(attachmentsPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rec, err := newAdapter(Rules{}).ParseItem(context.Background(), srv.URL+"/media/water")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/water.mp3", rec.Audio)
	assert.Equal(t, srv.URL+"/files/notes.pdf; "+srv.URL+"/media/handout.docx", rec.Files)
}

func TestMapWithConfiguredPaths(t *testing.T) {
	t.Parallel()

	a := newAdapter(Rules{Paths: map[string]string{"Teacher": "preacher", "date": "published"}})
	rec := a.Map(`{"title":"Rest","preacher":"Sam","published":1700000000,"passages":"N/A"}`)
	assert.Equal(t, "Rest", rec.Title)
	assert.Equal(t, "Sam", rec.Teacher)
	assert.Empty(t, rec.Text)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), rec.Date)
}

func TestMapSkipsUnparseableDate(t *testing.T) {
	t.Parallel()

	rec := newAdapter(Rules{}).Map(`{"title":"Rest","date":"someday"}`)
	assert.Equal(t, "Rest", rec.Title)
	assert.True(t, rec.Date.IsZero())
}

func TestListItemLinksFallsBackToEntry(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body></body></html>`))
	}))
	defer srv.Close()

	links, err := newAdapter(Rules{}).ListItemLinks(context.Background(), srv.URL+"/media/only")
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/media/only"}, links)
}
