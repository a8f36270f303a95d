package upstream

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// CommonsDumps lists the database dumps of Wikimedia Commons.
const CommonsDumps = "https://ftp.acc.umu.se/mirror/wikimedia.org/dumps/commonswiki/"

var commonsDumpDir = regexp.MustCompile(`<a href="(2[0-9]{7})/">`)

// Commons finds the latest geotag table in the Wikimedia Commons dumps.
// The release is a gzip-compressed SQL dump.
type Commons struct {
	fetcher *Fetcher
	base    string
}

// NewCommons creates a Commons source. An empty base means CommonsDumps.
func NewCommons(fetcher *Fetcher, base string) *Commons {
	if base == "" {
		base = CommonsDumps
	}
	return &Commons{fetcher: fetcher, base: strings.TrimSuffix(base, "/") + "/"}
}

func (c *Commons) Name() string { return "wikicommons" }

// Latest returns the newest dump directory that already holds the
// geo_tags table; dumps are published table by table.
func (c *Commons) Latest(ctx context.Context) (Release, error) {
	index, err := c.fetcher.Get(ctx, c.base)
	if err != nil {
		return Release{}, err
	}

	var dates []string
	for _, m := range commonsDumpDir.FindAllSubmatch(index, -1) {
		if date := string(m[1]); !slices.Contains(dates, date) {
			dates = append(dates, date)
		}
	}
	slices.Sort(dates)

	for i := len(dates) - 1; i >= 0; i-- {
		date := dates[i]
		published, err := time.Parse("20060102", date)
		if err != nil {
			continue
		}
		listing, err := c.fetcher.Get(ctx, c.base+date+"/")
		if err != nil {
			return Release{}, err
		}
		file := fmt.Sprintf("commonswiki-%s-geo_tags.sql.gz", date)
		if !bytes.Contains(listing, []byte(file)) {
			continue
		}
		return Release{
			Published: published,
			URL:       c.base + date + "/" + file,
			File:      file,
		}, nil
	}
	return Release{}, fmt.Errorf("%w: no Wikimedia Commons geotag dump at %s", ErrReleaseNotFound, c.base)
}
