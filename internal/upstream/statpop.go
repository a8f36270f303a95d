package upstream

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// StatPopHost serves the STATPOP releases of the Federal Statistical Office.
const StatPopHost = "https://www.bfs.admin.ch"

const statPopListPath = "/bfs/de/home/dienstleistungen/geostat/geodaten-bundesstatistik/" +
	"gebaeude-wohnungen-haushalte-personen/bevoelkerung-haushalte-ab-2010/_jcr_content/" +
	"par/tabs/items/geodaten_statpop/tabpar/ws_parametrized_list.dynamiclist.html"

var (
	statPopDatasetLink  = regexp.MustCompile(`href="(/bfs/de/home/dienstleistungen/geostat/geodaten-bundesstatistik/[^"]+)"`)
	statPopDownloadLink = regexp.MustCompile(`<a href="([^"]+)"[^>]*?>Download`)
	statPopPublished    = regexp.MustCompile(`<th>Veröffentlicht am</th>\s*<td>([0-9]{1,2})\.([0-9]{1,2})\.(20[0-9]{2})`)
)

// StatPop finds the latest hectare population table of the Swiss Federal
// Statistical Office. The release is a zip archive holding STATPOP20??G.csv.
type StatPop struct {
	fetcher *Fetcher
	host    string
}

// NewStatPop creates a StatPop source. An empty host means StatPopHost.
func NewStatPop(fetcher *Fetcher, host string) *StatPop {
	if host == "" {
		host = StatPopHost
	}
	return &StatPop{fetcher: fetcher, host: host}
}

func (s *StatPop) Name() string { return "chpopstat" }

// Latest follows the dataset list to the newest release page and reads
// its download link and publication date.
func (s *StatPop) Latest(ctx context.Context) (Release, error) {
	listURL, err := url.Parse(s.host + statPopListPath)
	if err != nil {
		return Release{}, err
	}
	list, err := s.fetcher.Get(ctx, listURL.String())
	if err != nil {
		return Release{}, err
	}
	m := statPopDatasetLink.FindSubmatch(list)
	if m == nil {
		return Release{}, fmt.Errorf("%w: no STATPOP dataset listed at %s", ErrReleaseNotFound, s.host)
	}
	ref, err := url.Parse(string(m[1]))
	if err != nil {
		return Release{}, err
	}
	datasetURL := listURL.ResolveReference(ref)

	page, err := s.fetcher.Get(ctx, datasetURL.String())
	if err != nil {
		return Release{}, err
	}
	m = statPopDownloadLink.FindSubmatch(page)
	if m == nil {
		return Release{}, fmt.Errorf("%w: no download link on %s", ErrReleaseNotFound, datasetURL)
	}
	ref, err = url.Parse(string(m[1]))
	if err != nil {
		return Release{}, fmt.Errorf("%w: %v", ErrReleaseNotFound, err)
	}
	downloadURL := datasetURL.ResolveReference(ref)

	m = statPopPublished.FindSubmatch(page)
	if m == nil {
		return Release{}, fmt.Errorf("%w: no publication date on %s", ErrReleaseNotFound, datasetURL)
	}
	day, _ := strconv.Atoi(string(m[1]))
	month, _ := strconv.Atoi(string(m[2]))
	year, _ := strconv.Atoi(string(m[3]))

	return Release{
		Published: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
		URL:       downloadURL.String(),
		File:      "statpop.zip",
	}, nil
}
