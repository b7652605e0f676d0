package kis

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"stock_bot/internal/modules/config"
	"stock_bot/internal/ratelimit"
)

const (
	prodBaseURL  = "https://openapi.koreainvestment.com:9443"
	paperBaseURL = "https://openapivts.koreainvestment.com:29443"
)

// Client — обёртка REST API Korea Investment & Securities. Все исходящие
// вызовы идут через общий лимитер: брокер режет доступ за превышение TPS.
type Client struct {
	httpc   *http.Client
	baseURL string
	wsURL   string

	appKey    string
	appSecret string
	cano      string // счёт, первые 8 цифр
	acntPrdt  string // код продукта, последние 2
	paper     bool

	limiter *ratelimit.Limiter
	tokens  *TokenManager
}

func NewClient(cfg config.KISConfig, limiter *ratelimit.Limiter) (*Client, error) {
	if cfg.AppKey == "" || cfg.AppSecret == "" {
		return nil, errors.New("kis: app key/secret are not set")
	}
	parts := strings.SplitN(cfg.AccountNo, "-", 2)
	if len(parts) != 2 || len(parts[0]) != 8 {
		return nil, errors.Errorf("kis: bad account number %q, want XXXXXXXX-XX", cfg.AccountNo)
	}

	paper := cfg.EnvType != "prod"
	base := prodBaseURL
	ws := prodWSURL
	if paper {
		base = paperBaseURL
		ws = paperWSURL
	}

	c := &Client{
		httpc:     &http.Client{Timeout: 10 * time.Second},
		baseURL:   base,
		wsURL:     ws,
		appKey:    cfg.AppKey,
		appSecret: cfg.AppSecret,
		cano:      parts[0],
		acntPrdt:  parts[1],
		paper:     paper,
		limiter:   limiter,
	}
	c.tokens = NewTokenManager(c)
	return c, nil
}

// trID выбирает бумажный/боевой вариант TR. Бумажные коды начинаются с V.
func (c *Client) trID(prod string) string {
	if !c.paper {
		return prod
	}
	return "V" + strings.TrimPrefix(prod, "T")
}

func (c *Client) doGet(ctx context.Context, path, trID string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, trID, query, nil, out)
}

func (c *Client) doPost(ctx context.Context, path, trID string, body any, out any) error {
	payload, err := sonic.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "kis marshal request")
	}
	return c.do(ctx, http.MethodPost, path, trID, nil, payload, out)
}

func (c *Client) do(ctx context.Context, method, path, trID string, query url.Values, payload []byte, out any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "kis"+strings.ReplaceAll(path, "/", "."))
	defer span.Finish()
	span.SetTag("tr_id", trID)

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "kis rate limiter")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return errors.Wrap(err, "kis new request")
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("custtype", "P")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "kis %s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "kis read response")
	}
	if resp.StatusCode != http.StatusOK {
		span.SetTag("error", true)
		return errors.Errorf("kis %s: http %d: %s", path, resp.StatusCode, truncate(raw))
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "kis decode %s", path)
	}
	return nil
}

func truncate(raw []byte) string {
	const limit = 300
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
