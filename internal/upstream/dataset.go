package upstream

import (
	"context"
	"fmt"
)

// Dataset is an upstream source chpopstat can fetch.
type Dataset interface {
	Name() string
	Latest(ctx context.Context) (Release, error)
}

// DatasetNames lists the datasets NewDataset knows.
var DatasetNames = []string{"chpopstat", "wikicommons"}

// NewDataset returns the named dataset. An empty base selects the public
// upstream server.
func NewDataset(name string, fetcher *Fetcher, base string) (Dataset, error) {
	switch name {
	case "chpopstat":
		return NewStatPop(fetcher, base), nil
	case "wikicommons":
		return NewCommons(fetcher, base), nil
	default:
		return nil, fmt.Errorf("unknown dataset %q; expected one of %v", name, DatasetNames)
	}
}
