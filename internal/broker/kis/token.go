package kis

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"stock_bot/pkg/logger"
)

// Токен живёт сутки, но переполучаем с запасом: KIS отзывает старый токен
// при выдаче нового, гонять выдачу в цикле нельзя.
const tokenSlack = 30 * time.Minute

type TokenManager struct {
	c *Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewTokenManager(c *Client) *TokenManager {
	return &TokenManager{c: c}
}

func (t *TokenManager) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Now().Before(t.expires.Add(-tokenSlack)) {
		return t.token, nil
	}

	payload, _ := sonic.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     t.c.appKey,
		"appsecret":  t.c.appSecret,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.c.baseURL+"/oauth2/tokenP", bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "kis token request")
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := t.c.httpc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "kis issue token")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "kis read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("kis issue token: http %d: %s", resp.StatusCode, truncate(raw))
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := sonic.Unmarshal(raw, &body); err != nil {
		return "", errors.Wrap(err, "kis decode token")
	}
	if body.AccessToken == "" {
		return "", errors.Errorf("kis issue token: empty token in response: %s", truncate(raw))
	}

	t.token = body.AccessToken
	t.expires = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	logger.Info("[kis] access token issued, expires in %ds", body.ExpiresIn)
	return t.token, nil
}

// ApprovalKey — отдельный ключ для websocket-подписок.
func (t *TokenManager) ApprovalKey(ctx context.Context) (string, error) {
	payload, _ := sonic.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     t.c.appKey,
		"secretkey":  t.c.appSecret,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.c.baseURL+"/oauth2/Approval", bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "kis approval request")
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := t.c.httpc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "kis issue approval key")
	}
	defer resp.Body.Close()

	var body struct {
		ApprovalKey string `json:"approval_key"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "kis read approval response")
	}
	if err := sonic.Unmarshal(raw, &body); err != nil {
		return "", errors.Wrap(err, "kis decode approval key")
	}
	if body.ApprovalKey == "" {
		return "", errors.Errorf("kis approval key missing: %s", truncate(raw))
	}
	return body.ApprovalKey, nil
}
