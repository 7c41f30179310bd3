package drand

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/build"
	"github.com/boneyard93501/simple-drand/chain/beacon"
)

// Fetcher retrieves raw response bodies from drand endpoints. Implementations must return
// an error instead of a partially read body and must respect both ctx and timeout.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// DefaultMaxBodySize bounds responses; chain info and beacons are well under a kilobyte.
const DefaultMaxBodySize = 64 << 10

// HTTPFetcher fetches over plain HTTP(S) GET requests.
type HTTPFetcher struct {
	Client      *http.Client
	UserAgent   string
	MaxBodySize int64
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client:      http.DefaultClient,
		UserAgent:   build.UserAgent(),
		MaxBodySize: DefaultMaxBodySize,
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Unwrap() error {
	return beacon.ErrTransport
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, xerrors.Errorf("building request for %s: %w", url, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("GET %s (%s): %w", url, err, beacon.ErrTransport)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	limit := f.MaxBodySize
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, xerrors.Errorf("reading body of %s (%s): %w", url, err, beacon.ErrTransport)
	}
	if int64(len(body)) > limit {
		return nil, xerrors.Errorf("body of %s exceeds %d bytes: %w", url, limit, beacon.ErrTransport)
	}
	return body, nil
}

func infoURL(base, chainHash string) string {
	return base + "/" + chainHash + "/info"
}

func roundURL(base, chainHash string, round uint64) string {
	return base + "/" + chainHash + "/public/" + strconv.FormatUint(round, 10)
}

// asTransport makes sure fetch failures from any Fetcher classify as transport errors.
func asTransport(err error) error {
	if xerrors.Is(err, beacon.ErrTransport) {
		return err
	}
	return xerrors.Errorf("%s: %w", err, beacon.ErrTransport)
}
