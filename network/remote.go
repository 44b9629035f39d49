package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SirZenith/lazyimg/media"
	"github.com/charmbracelet/log"
	"github.com/gocolly/colly/v2"
)

const (
	ctxKeyInfo = "mediaInfo"
	ctxKeyErr  = "mediaErr"
)

// RemoteOptions configures a RemoteLookup.
type RemoteOptions struct {
	Endpoint string        // media info endpoint, reference is sent as `ref` query parameter
	Timeout  time.Duration // zero means collector default
	Retry    int
	Headers  map[string]string
}

// RemoteLookup resolves media references by querying an HTTP endpoint which
// answers with media info JSON. 404 response is treated as unknown reference.
type RemoteLookup struct {
	endpoint  *url.URL
	retry     int
	header    http.Header
	collector *colly.Collector
}

func NewRemoteLookup(options RemoteOptions) (*RemoteLookup, error) {
	endpoint, err := url.Parse(options.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid media endpoint %q: %s", options.Endpoint, err)
	} else if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("media endpoint must be a HTTP URL: %q", options.Endpoint)
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	for k, v := range options.Headers {
		header.Set(k, v)
	}

	lookup := &RemoteLookup{
		endpoint:  endpoint,
		retry:     options.Retry,
		header:    header,
		collector: makeCollector(options.Timeout),
	}

	return lookup, nil
}

func makeCollector(timeout time.Duration) *colly.Collector {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
	)

	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}

	c.OnResponse(func(r *colly.Response) {
		data, err := DecompressResponseBody(r)
		if err != nil {
			r.Ctx.Put(ctxKeyErr, err)
			return
		}

		info := media.Info{}
		if err := json.Unmarshal(data, &info); err != nil {
			r.Ctx.Put(ctxKeyErr, fmt.Errorf("invalid media info from %s: %s", r.Request.URL, err))
			return
		}

		r.Ctx.Put(ctxKeyErr, nil)
		r.Ctx.Put(ctxKeyInfo, info)
	})

	c.OnError(func(r *colly.Response, err error) {
		if r.StatusCode == http.StatusNotFound {
			r.Ctx.Put(ctxKeyErr, fmt.Errorf("%w: remote answered 404", media.ErrNotFound))
			return
		}

		retryCnt, retryErr := RetryRequest(r.Request)
		if retryErr == nil {
			log.Debugf("retry #%d for %s", retryCnt, r.Request.URL)
			return
		}

		if errors.Is(retryErr, ErrMaxRetry) {
			r.Ctx.Put(ctxKeyErr, fmt.Errorf("error requesting %s: %s", r.Request.URL, err))
		} else {
			r.Ctx.Put(ctxKeyErr, fmt.Errorf("failed to retry %s: %s", r.Request.URL, retryErr))
		}
	})

	return c
}

func (l *RemoteLookup) requestURL(ref string) string {
	target := *l.endpoint

	query := target.Query()
	query.Set("ref", ref)
	target.RawQuery = query.Encode()

	return target.String()
}

func (l *RemoteLookup) Lookup(ctx context.Context, ref string) (media.Info, error) {
	if err := ctx.Err(); err != nil {
		return media.Info{}, err
	}

	reqCtx := colly.NewContext()
	SetMaxRetry(reqCtx, l.retry)

	header := l.header.Clone()
	requestErr := l.collector.Request(http.MethodGet, l.requestURL(ref), nil, reqCtx, header)

	if err, _ := reqCtx.GetAny(ctxKeyErr).(error); err != nil {
		return media.Info{}, err
	}

	info, ok := reqCtx.GetAny(ctxKeyInfo).(media.Info)
	if !ok {
		if requestErr == nil {
			requestErr = errors.New("no response")
		}
		return media.Info{}, fmt.Errorf("media lookup for %s failed: %s", ref, requestErr)
	}

	if info.Ref == "" {
		info.Ref = ref
	} else if !strings.EqualFold(info.Ref, ref) {
		return media.Info{}, fmt.Errorf("media endpoint answered %q for reference %q", info.Ref, ref)
	}

	return info, nil
}
