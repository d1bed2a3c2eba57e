package fleetsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Fetcher is the remote document store collaborator: get-by-path returning a
// mapping from record id to raw record, or nil when the path is empty. The
// orchestrator depends only on this contract so tests can inject doubles.
type Fetcher interface {
	Get(ctx context.Context, path string) (map[string]json.RawMessage, error)
}

// rtdbClient reads the Firebase Realtime Database over its REST interface:
// GET {base}/{path}.json with an optional auth query parameter.
type rtdbClient struct {
	baseURL   string
	authToken string
	http      *http.Client
	limiter   <-chan time.Time
}

func NewRTDBClient() (Fetcher, error) {
	baseURL := strings.TrimSpace(os.Getenv("FIREBASE_DB_URL"))
	if baseURL == "" {
		return nil, errors.New("FIREBASE_DB_URL is empty")
	}
	authToken := strings.TrimSpace(os.Getenv("FIREBASE_DB_AUTH"))

	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("FLEET_SYNC_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &rtdbClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		http:      &http.Client{Timeout: 60 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

func (c *rtdbClient) Get(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	<-c.limiter
	endpoint := c.baseURL + "/" + strings.Trim(path, "/") + ".json"
	if c.authToken != "" {
		params := url.Values{}
		params.Set("auth", c.authToken)
		endpoint = endpoint + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rtdb error %d at %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
	}

	return decodeDocumentMap(body)
}

// decodeDocumentMap accepts the two shapes the store serves: an object keyed
// by record id, or an array (the store compacts integer-keyed objects into
// arrays). Arrays are re-keyed by index; null and empty bodies mean no data.
func decodeDocumentMap(body []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		out := make(map[string]json.RawMessage, len(list))
		for i, raw := range list {
			if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				continue
			}
			out[strconv.Itoa(i)] = raw
		}
		return out, nil
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}
