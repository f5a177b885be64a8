// Copyright 2025 EarthFocus Labs
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fetch streams granule payloads to disk. Files are written to
// a temp path and renamed into place so readers never see a partial
// download, and already-present files are skipped so interrupted batch
// runs resume where they stopped.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	maaperrors "github.com/earthfocus/maap-client/internal/errors"
)

// TokenSource supplies a bearer token for download requests. A nil
// source means anonymous access.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Target is one download: a remote locator and its local destination.
type Target struct {
	Locator string
	Local   string
}

// Options configures a Fetcher.
type Options struct {
	// TokenSource authenticates downloads; nil for anonymous access.
	TokenSource TokenSource
	// Concurrency bounds parallel downloads in Batch. Zero means 4.
	Concurrency int
	// Timeout bounds each download request. Zero means 30 minutes;
	// granule payloads run to gigabytes.
	Timeout time.Duration
	// Logger receives per-file progress output.
	Logger zerolog.Logger
}

// Fetcher downloads granules.
type Fetcher struct {
	httpClient  *http.Client
	tokens      TokenSource
	concurrency int
	log         zerolog.Logger
}

// New creates a fetcher.
func New(opts Options) *Fetcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Minute
	}
	return &Fetcher{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		tokens:      opts.TokenSource,
		concurrency: opts.Concurrency,
		log:         opts.Logger,
	}
}

// Download retrieves one locator to the given local path. An existing
// file at the destination is left alone and reported via the skipped
// return. The payload streams through a .part file that is renamed
// only after a complete, verified-length write.
func (f *Fetcher) Download(ctx context.Context, target Target) (skipped bool, err error) {
	if _, statErr := os.Stat(target.Local); statErr == nil {
		f.log.Debug().Str("path", target.Local).Msg("already on disk, skipping")
		return true, nil
	}
	if err := os.MkdirAll(filepath.Dir(target.Local), 0o755); err != nil {
		return false, fmt.Errorf("creating data directory: %v: %w", err, maaperrors.ErrStorage)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.Locator, nil)
	if err != nil {
		return false, fmt.Errorf("building download request: %w", err)
	}
	if f.tokens != nil {
		token, err := f.tokens.Token(ctx)
		if err != nil {
			return false, fmt.Errorf("acquiring token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("downloading %s: %v: %w", target.Locator, err, maaperrors.ErrNetworkFailure)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, fmt.Errorf("download of %s returned %d: %w", target.Locator, resp.StatusCode, maaperrors.ErrInvalidCredentials)
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("download of %s returned %d: %w", target.Locator, resp.StatusCode, maaperrors.ErrRemoteQuery)
	}

	tmpPath := target.Local + ".part"
	out, err := os.Create(tmpPath)
	if err != nil {
		return false, fmt.Errorf("creating %s: %v: %w", tmpPath, err, maaperrors.ErrStorage)
	}

	written, err := io.Copy(out, resp.Body)
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil && resp.ContentLength > 0 && written != resp.ContentLength {
		err = fmt.Errorf("short read: %d of %d bytes", written, resp.ContentLength)
	}
	if err != nil {
		os.Remove(tmpPath)
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("streaming %s: %v: %w", target.Locator, err, maaperrors.ErrNetworkFailure)
	}
	if err := os.Rename(tmpPath, target.Local); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("finalizing %s: %v: %w", target.Local, err, maaperrors.ErrStorage)
	}

	elapsed := time.Since(started)
	f.log.Info().
		Str("path", target.Local).
		Int64("bytes", written).
		Dur("elapsed", elapsed).
		Msg("download complete")
	return false, nil
}

// FailedTarget pairs a target with the error that sank its download.
type FailedTarget struct {
	Target Target
	Err    error
}

// BatchResult summarizes a Batch run. Failed equals len(Failures);
// the slice carries the per-target causes for callers that persist
// failure records.
type BatchResult struct {
	Fetched  int
	Skipped  int
	Failed   int
	Failures []FailedTarget
}

// Batch downloads targets with bounded concurrency. onFetched is
// invoked after each successful new download, serialized, so callers
// can record lifecycle confirmations without their own locking. A
// failed target is counted and logged but does not stop the batch;
// context cancellation does.
func (f *Fetcher) Batch(ctx context.Context, targets []Target, onFetched func(Target) error) (BatchResult, error) {
	var (
		mu     sync.Mutex
		result BatchResult
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, target := range targets {
		target := target
		g.Go(func() error {
			skipped, err := f.Download(ctx, target)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				f.log.Error().Err(err).Str("locator", target.Locator).Msg("download failed")
				result.Failed++
				result.Failures = append(result.Failures, FailedTarget{Target: target, Err: err})
				return nil
			case skipped:
				result.Skipped++
			default:
				result.Fetched++
			}
			if onFetched != nil {
				if err := onFetched(target); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	return result, err
}
