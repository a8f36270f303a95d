package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statPopListHTML = `<ul class="list">
<li><a href="/bfs/de/home/dienstleistungen/geostat/geodaten-bundesstatistik/gebaeude-wohnungen-haushalte-personen/bevoelkerung-haushalte-ab-2010/assetdetail.9606372.html">STATPOP 2018</a></li>
<li><a href="/bfs/de/home/dienstleistungen/geostat/geodaten-bundesstatistik/gebaeude-wohnungen-haushalte-personen/bevoelkerung-haushalte-ab-2010/assetdetail.7826601.html">STATPOP 2017</a></li>
</ul>`

const statPopDatasetHTML = `<table>
<tr><th>Veröffentlicht am</th>
  <td>27.08.2019</td></tr>
</table>
<a href="/bfs/de/home/statistiken/kataloge-datenbanken/geodaten.assetdetail.9606372.html/assets/9606372/master" class="btn">Download</a>`

// newStatPopServer serves a list page, one dataset page and the archive.
func newStatPopServer(t *testing.T, datasetHTML string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(statPopListPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(statPopListHTML))
	})
	mux.HandleFunc("/bfs/de/home/dienstleistungen/geostat/geodaten-bundesstatistik/gebaeude-wohnungen-haushalte-personen/bevoelkerung-haushalte-ab-2010/assetdetail.9606372.html",
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(datasetHTML))
		})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStatPopLatest(t *testing.T) {
	srv := newStatPopServer(t, statPopDatasetHTML)
	f, _ := newTestFetcher(t, 1)

	rel, err := NewStatPop(f, srv.URL).Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 8, 27, 0, 0, 0, 0, time.UTC), rel.Published)
	assert.Equal(t, "20190827", rel.Version())
	assert.Equal(t, srv.URL+"/bfs/de/home/statistiken/kataloge-datenbanken/geodaten.assetdetail.9606372.html/assets/9606372/master", rel.URL)
	assert.Equal(t, "statpop.zip", rel.File)
}

func TestStatPopLatestIncompletePage(t *testing.T) {
	tests := map[string]string{
		"no download link":    `<th>Veröffentlicht am</th><td>27.08.2019</td>`,
		"no publication date": `<a href="/assets/9606372/master">Download</a>`,
	}
	for name, page := range tests {
		t.Run(name, func(t *testing.T) {
			srv := newStatPopServer(t, page)
			f, _ := newTestFetcher(t, 1)
			_, err := NewStatPop(f, srv.URL).Latest(context.Background())
			assert.ErrorIs(t, err, ErrReleaseNotFound)
		})
	}
}

func TestStatPopLatestEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<ul></ul>"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, 1)
	_, err := NewStatPop(f, srv.URL).Latest(context.Background())
	assert.ErrorIs(t, err, ErrReleaseNotFound)
}
