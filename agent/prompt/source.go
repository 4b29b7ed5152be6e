package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentloop/internal/tlsutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source supplies a prompt template.
type Source interface {
	Template(ctx context.Context) (string, error)
}

// StaticSource serves a fixed template.
type StaticSource string

func (s StaticSource) Template(context.Context) (string, error) {
	tmpl := string(s)
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	if err := Validate(tmpl); err != nil {
		return "", err
	}
	return tmpl, nil
}

// HubSource fetches a template with GET <BaseURL>/<Name>. The body is
// either JSON {"template": "..."} or the template as plain text.
type HubSource struct {
	BaseURL string
	Name    string
	Client  *http.Client
}

// NewHubSource creates a hub source with a hardened client.
func NewHubSource(baseURL, name string, timeout time.Duration) *HubSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HubSource{BaseURL: baseURL, Name: name, Client: tlsutil.SecureHTTPClient(timeout)}
}

type hubPayload struct {
	Template string `json:"template"`
}

func (h *HubSource) Template(ctx context.Context) (string, error) {
	url := strings.TrimRight(h.BaseURL, "/") + "/" + strings.TrimLeft(h.Name, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build hub request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch prompt %s: %w", h.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", h.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch prompt %s: status %d", h.Name, resp.StatusCode)
	}

	tmpl := string(body)
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "application/json" {
		var p hubPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return "", fmt.Errorf("decode prompt %s: %w", h.Name, err)
		}
		tmpl = p.Template
	}
	if err := Validate(tmpl); err != nil {
		return "", err
	}
	return tmpl, nil
}

// TemplateCache is the subset of internal/cache.Manager CachedSource uses.
type TemplateCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CachedSource caches a template for the life of the process, optionally
// sharing it through a TemplateCache with a TTL. Concurrent first loads
// are coalesced. Cache failures are logged and fall through to the source.
type CachedSource struct {
	src    Source
	remote TemplateCache
	key    string
	ttl    time.Duration
	logger *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	value string
}

// NewCachedSource wraps src. remote may be nil.
func NewCachedSource(src Source, remote TemplateCache, key string, ttl time.Duration, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key == "" {
		key = "agentloop:prompt:default"
	}
	return &CachedSource{
		src:    src,
		remote: remote,
		key:    key,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "prompt_source")),
	}
}

func (c *CachedSource) Template(ctx context.Context) (string, error) {
	c.mu.RLock()
	v := c.value
	c.mu.RUnlock()
	if v != "" {
		return v, nil
	}

	out, err, _ := c.group.Do(c.key, func() (any, error) {
		if c.remote != nil {
			cached, err := c.remote.Get(ctx, c.key)
			if err == nil && Validate(cached) == nil {
				return cached, nil
			}
			if err != nil {
				c.logger.Debug("remote prompt cache unavailable", zap.Error(err))
			}
		}

		tmpl, err := c.src.Template(ctx)
		if err != nil {
			return "", err
		}
		if c.remote != nil {
			if err := c.remote.Set(ctx, c.key, tmpl, c.ttl); err != nil {
				c.logger.Warn("store prompt in remote cache failed", zap.Error(err))
			}
		}
		return tmpl, nil
	})
	if err != nil {
		return "", err
	}

	tmpl := out.(string)
	c.mu.Lock()
	c.value = tmpl
	c.mu.Unlock()
	return tmpl, nil
}

// Invalidate forgets the process-level copy.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	c.value = ""
	c.mu.Unlock()
}
