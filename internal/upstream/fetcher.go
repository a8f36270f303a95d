// Package upstream locates and downloads the published releases of the
// datasets chpopstat aggregates.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	log "github.com/sirupsen/logrus"
)

// ErrReleaseNotFound is returned when an upstream page does not list a
// usable release.
var ErrReleaseNotFound = errors.New("could not find latest release")

// DefaultRetries bounds how often a failed request is repeated.
const DefaultRetries = 5

// Release is one published version of a dataset.
type Release struct {
	Published time.Time
	URL       string
	// File is the name the download is stored under; its extension tells
	// how to open it.
	File string
}

// Version returns the publication date as used in output file names.
func (r Release) Version() string {
	return r.Published.Format("20060102")
}

// statusError is an HTTP failure that retrying will not fix.
type statusError struct {
	url    string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.url, e.status, http.StatusText(e.status))
}

// Fetcher performs HTTP requests against upstream servers, retrying
// transient failures with exponential backoff.
type Fetcher struct {
	client  *http.Client
	backOff func() backoff.BackOff
	logger  log.FieldLogger
}

// NewFetcher creates a Fetcher. A nil client means http.DefaultClient.
func NewFetcher(client *http.Client, logger log.FieldLogger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Fetcher{
		client: client,
		backOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), DefaultRetries)
		},
		logger: logger,
	}
}

// WithBackOff replaces the retry policy.
func (f *Fetcher) WithBackOff(fn func() backoff.BackOff) *Fetcher {
	f.backOff = fn
	return f
}

// retry runs op until it succeeds, fails permanently or the policy gives up.
func (f *Fetcher) retry(ctx context.Context, url string, op func() error) error {
	var permanent error
	err := backoff.RetryNotify(
		func() error {
			err := op()
			var se *statusError
			if errors.As(err, &se) && se.status < http.StatusInternalServerError && se.status != http.StatusTooManyRequests {
				permanent = err
				return nil
			}
			if ctx.Err() != nil {
				permanent = ctx.Err()
				return nil
			}
			return err
		},
		backoff.WithContext(f.backOff(), ctx),
		func(err error, d time.Duration) {
			f.logger.WithField("url", url).WithError(err).Warnf("Request failed, retrying in %v", d)
		},
	)
	if permanent != nil {
		return permanent
	}
	return err
}

func (f *Fetcher) open(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &statusError{url: url, status: resp.StatusCode}
	}
	return resp, nil
}

// Get returns the body of url.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := f.retry(ctx, url, func() error {
		resp, err := f.open(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Download stores the body of url at path. The file only appears once the
// transfer has completed.
func (f *Fetcher) Download(ctx context.Context, url, path string) error {
	start := time.Now()
	var size int64
	err := f.retry(ctx, url, func() error {
		resp, err := f.open(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())
		size, err = io.Copy(tmp, resp.Body)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		return os.Rename(tmp.Name(), path)
	})
	if err != nil {
		return fmt.Errorf("error downloading %s: %w", url, err)
	}
	f.logger.WithFields(log.Fields{
		"url":   url,
		"bytes": size,
	}).Infof("Downloaded in %v", time.Since(start))
	return nil
}
