package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultAPIBase    = "https://discord.com/api/v10"
	DefaultAPIVersion = 10
)

// GatewayInfo is the /gateway/bot response.
type GatewayInfo struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards,omitempty"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

type SessionStartLimit struct {
	Total          int `json:"total"`
	Remaining      int `json:"remaining"`
	ResetAfter     int `json:"reset_after"`
	MaxConcurrency int `json:"max_concurrency"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Discovery resolves the gateway URL over the REST API.
type Discovery struct {
	client  *resty.Client
	apiBase string
	version int
}

func NewDiscovery(client *resty.Client, apiBase string, version int) *Discovery {
	if client == nil {
		client = resty.New()
	}
	if strings.TrimSpace(apiBase) == "" {
		apiBase = DefaultAPIBase
	}
	if version <= 0 {
		version = DefaultAPIVersion
	}
	return &Discovery{
		client:  client,
		apiBase: strings.TrimRight(apiBase, "/"),
		version: version,
	}
}

// Lookup fetches /gateway/bot with token, or /gateway without one.
func (d *Discovery) Lookup(ctx context.Context, token string) (GatewayInfo, error) {
	var info GatewayInfo
	var apiErr apiError
	req := d.client.R().
		SetContext(ctx).
		SetResult(&info).
		SetError(&apiErr)
	path := "/gateway"
	if token = strings.TrimSpace(token); token != "" {
		req.SetHeader("Authorization", "Bot "+token)
		path = "/gateway/bot"
	}
	resp, err := req.Get(d.apiBase + path)
	if err != nil {
		return GatewayInfo{}, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	if resp.IsError() {
		return GatewayInfo{}, fmt.Errorf("%w: status=%d message=%q", ErrDiscovery, resp.StatusCode(), apiErr.Message)
	}
	if strings.TrimSpace(info.URL) == "" {
		return GatewayInfo{}, fmt.Errorf("%w: empty url", ErrDiscovery)
	}
	return info, nil
}

// URL returns the dialable gateway URL with version and encoding set.
func (d *Discovery) URL(ctx context.Context, token string) (string, error) {
	info, err := d.Lookup(ctx, token)
	if err != nil {
		return "", err
	}
	return WithGatewayParams(info.URL, d.version)
}

// WithGatewayParams adds v and encoding=json to a gateway URL.
func WithGatewayParams(raw string, version int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	q := u.Query()
	if version > 0 && q.Get("v") == "" {
		q.Set("v", strconv.Itoa(version))
	}
	if q.Get("encoding") == "" {
		q.Set("encoding", "json")
	}
	u.RawQuery = q.Encode()
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
