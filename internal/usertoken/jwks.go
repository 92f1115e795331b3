package usertoken

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultJWKSCacheTTL       = 5 * time.Minute
	defaultMinRefreshInterval = 30 * time.Second
	maxJWKSBytes              = 1 << 20
)

// keySet caches the provider's RSA signing keys by kid. Concurrent refreshes
// collapse into one fetch.
type keySet struct {
	url        string
	client     *http.Client
	minRefresh time.Duration
	group      singleflight.Group
	now        func() time.Time

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	expires     time.Time
	lastRefresh time.Time
}

func newKeySet(url string, client *http.Client, minRefresh time.Duration) *keySet {
	if minRefresh <= 0 {
		minRefresh = defaultMinRefreshInterval
	}
	return &keySet{url: url, client: client, minRefresh: minRefresh, now: time.Now}
}

func (k *keySet) lookup(kid string) (*rsa.PublicKey, bool) {
	if kid == "" {
		return nil, false
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[kid]
	return key, ok
}

func (k *keySet) expired() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.now().After(k.expires)
}

// refreshIfAllowed refetches unless the cache is fresh and was refreshed
// within minRefresh. Random kids therefore cannot hammer the provider.
func (k *keySet) refreshIfAllowed(ctx context.Context) error {
	k.mu.RLock()
	throttled := k.now().Before(k.expires) && k.now().Sub(k.lastRefresh) < k.minRefresh
	k.mu.RUnlock()
	if throttled {
		return errUnknownKey
	}
	return k.refresh(ctx)
}

func (k *keySet) refresh(ctx context.Context) error {
	_, err, _ := k.group.Do("jwks", func() (any, error) {
		keys, ttl, err := k.fetch(ctx)
		if err != nil {
			return nil, err
		}
		now := k.now()
		k.mu.Lock()
		k.keys = keys
		k.expires = now.Add(ttl)
		k.lastRefresh = now
		k.mu.Unlock()
		return nil, nil
	})
	return err
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k *keySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}
	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&doc); err != nil {
		return nil, 0, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, j := range doc.Keys {
		if !strings.EqualFold(j.Kty, "RSA") || strings.TrimSpace(j.Kid) == "" {
			continue
		}
		if j.Use != "" && j.Use != "sig" {
			continue
		}
		if j.Alg != "" && j.Alg != "RS256" {
			continue
		}
		pub, err := j.rsaPublicKey()
		if err != nil {
			continue
		}
		keys[strings.TrimSpace(j.Kid)] = pub
	}
	if len(keys) == 0 {
		return nil, 0, errors.New("jwks contains no usable rsa keys")
	}
	ttl := maxAge(resp.Header.Get("Cache-Control"))
	if ttl <= 0 {
		ttl = defaultJWKSCacheTTL
	}
	return keys, ttl, nil
}

func (j jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(j.N))
	if err != nil {
		return nil, err
	}
	e, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(j.E))
	if err != nil {
		return nil, err
	}
	modulus := new(big.Int).SetBytes(n)
	exp := new(big.Int).SetBytes(e)
	if modulus.BitLen() < 2048 || !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, errors.New("invalid rsa key")
	}
	return &rsa.PublicKey{N: modulus, E: int(exp.Int64())}, nil
}

// maxAge reads the max-age directive of a Cache-Control header.
func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}
