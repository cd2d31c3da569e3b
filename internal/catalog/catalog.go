// Package catalog 访问外部菜谱目录（TheMealDB），用于补全外部菜谱的标题、图片与分类。
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"recipedia/internal/metrics"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound            = errors.New("catalog: not found")
	ErrUpstreamUnavailable = errors.New("catalog: upstream unavailable")
)

type Meal struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Image    string `json:"image"`
	Category string `json:"category"`
	Area     string `json:"area"`
}

// Placeholder 是目录不可用时返回给调用方的占位数据。
func Placeholder(id string) Meal {
	return Meal{ID: id, Title: "External recipe " + id, Category: "Unknown"}
}

type Client struct {
	baseURL  string
	http     *http.Client
	cache    Cache
	cacheTTL time.Duration
	sf       singleflight.Group
}

// New 创建目录客户端；timeout 约束每次 HTTP 请求，cache 为 nil 时不缓存。
func New(baseURL string, timeout time.Duration, cache Cache, cacheTTL time.Duration) *Client {
	if cache == nil {
		cache = NopCache{}
	}
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Lookup 按目录 id 查询单个菜谱，同一 id 的并发请求只会发出一次。
func (c *Client) Lookup(ctx context.Context, id string) (Meal, error) {
	key := "catalog:meal:" + id
	if b, ok := c.cache.Get(ctx, key); ok {
		var m Meal
		if err := json.Unmarshal(b, &m); err == nil {
			metrics.CatalogLookups.WithLabelValues("cache_hit").Inc()
			return m, nil
		}
	}

	// 请求与调用方的取消解耦，由 http.Client 的超时兜底；
	// 每个调用方只按自己的 ctx 放弃等待，不影响共享同一请求的其他调用方。
	ch := c.sf.DoChan(key, func() (interface{}, error) {
		return c.fetchMeal(context.WithoutCancel(ctx), id)
	})
	var (
		v   interface{}
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.CatalogLookups.WithLabelValues("not_found").Inc()
		} else {
			metrics.CatalogLookups.WithLabelValues("error").Inc()
		}
		return Meal{}, err
	}
	metrics.CatalogLookups.WithLabelValues("fetched").Inc()
	m := v.(Meal)
	if b, err := json.Marshal(m); err == nil {
		c.cache.Set(ctx, key, b, c.cacheTTL)
	}
	return m, nil
}

func (c *Client) fetchMeal(ctx context.Context, id string) (Meal, error) {
	body, err := c.get(ctx, "/lookup.php", url.Values{"i": {id}})
	if err != nil {
		return Meal{}, err
	}
	meal := gjson.GetBytes(body, "meals.0")
	if !meal.Exists() {
		return Meal{}, ErrNotFound
	}
	return Meal{
		ID:       meal.Get("idMeal").String(),
		Title:    meal.Get("strMeal").String(),
		Image:    meal.Get("strMealThumb").String(),
		Category: meal.Get("strCategory").String(),
		Area:     meal.Get("strArea").String(),
	}, nil
}

// DishesByArea 返回某个菜系（TheMealDB 中的 Area）下的全部菜名。
func (c *Client) DishesByArea(ctx context.Context, area string) ([]string, error) {
	body, err := c.get(ctx, "/filter.php", url.Values{"a": {area}})
	if err != nil {
		return nil, err
	}
	names := gjson.GetBytes(body, "meals.#.strMeal").Array()
	if len(names) == 0 {
		return nil, ErrNotFound
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n.String())
	}
	return out, nil
}

// SuggestDishes 随机挑选至多 n 道该菜系的菜名。
func (c *Client) SuggestDishes(ctx context.Context, area string, n int) ([]string, error) {
	names, err := c.DishesByArea(ctx, area)
	if err != nil {
		return nil, err
	}
	rand.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
	if len(names) > n {
		names = names[:n]
	}
	return names, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed response", ErrUpstreamUnavailable)
	}
	return body, nil
}
