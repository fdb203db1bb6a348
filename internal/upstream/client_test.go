package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalogsync/internal"
	"catalogsync/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(pageSize int, rt roundTripFunc) *Client {
	cfg := config.Config{
		ERPBaseURL:      "https://erp.test/api",
		ERPAPIKey:       "secret",
		ERPAuthHeader:   "x-api-key",
		ERPRateLimitRPS: 1000,
		ERPTimeoutMs:    1000,
		ERPMaxRetries:   3,
		ERPPageSize:     pageSize,
	}
	c := NewClient(cfg, zap.NewNop())
	c.backoffBase = 0
	c.httpClient = &http.Client{Transport: rt}
	return c
}

func jsonResponse(status int, payload any) *http.Response {
	blob, _ := json.Marshal(payload)
	return rawResponse(status, string(blob))
}

func rawResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestFetchProductsPagesUntilShortBatch(t *testing.T) {
	var calls int32
	client := newTestClient(2, func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/v1/produto/produtos", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "2", r.URL.Query().Get("count"))

		switch r.URL.Query().Get("start") {
		case "0":
			return jsonResponse(200, map[string]any{"start": 0, "count": 2, "items": []map[string]any{
				{"id": 1, "descricao": "Arroz"},
				{"id": 2, "descricao": "Feijao"},
			}}), nil
		case "2":
			return jsonResponse(200, map[string]any{"start": 2, "count": 1, "items": []map[string]any{
				{"descricao": "sem id"},
			}}), nil
		}
		t.Fatalf("unexpected start %s", r.URL.Query().Get("start"))
		return nil, nil
	})

	products, skipped, err := client.FetchProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "Feijao", products[1].Name)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchAllStopsAtTotal(t *testing.T) {
	var calls int32
	client := newTestClient(2, func(r *http.Request) (*http.Response, error) {
		n := atomic.AddInt32(&calls, 1)
		return jsonResponse(200, map[string]any{"total": 4, "items": []map[string]any{
			{"id": int(n)*10 + 1, "descricao": "a"},
			{"id": int(n)*10 + 2, "descricao": "b"},
		}}), nil
	})

	sections, _, err := client.FetchSections(context.Background())
	require.NoError(t, err)
	assert.Len(t, sections, 4)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchRetriesRetryableStatus(t *testing.T) {
	attempt := 0
	client := newTestClient(10, func(r *http.Request) (*http.Response, error) {
		attempt++
		if attempt == 1 {
			return rawResponse(http.StatusServiceUnavailable, `{"error":"busy"}`), nil
		}
		return jsonResponse(200, map[string]any{"items": []map[string]any{{"id": 3, "descricao": "Marca X"}}}), nil
	})

	brands, _, err := client.FetchBrands(context.Background())
	require.NoError(t, err)
	require.Len(t, brands, 1)
	assert.Equal(t, "Marca X", brands[0].Description)
	assert.Equal(t, 2, attempt)
}

func TestFetchFailures(t *testing.T) {
	cases := []struct {
		name     string
		rt       roundTripFunc
		kind     internal.ErrorKind
		status   int
		attempts int32
	}{
		{
			name:     "unauthorized is not retried",
			rt:       func(*http.Request) (*http.Response, error) { return rawResponse(401, "denied"), nil },
			kind:     internal.ErrUpstreamUnavailable,
			status:   401,
			attempts: 1,
		},
		{
			name:     "server errors exhaust retries",
			rt:       func(*http.Request) (*http.Response, error) { return rawResponse(500, "boom"), nil },
			kind:     internal.ErrUpstreamUnavailable,
			status:   500,
			attempts: 3,
		},
		{
			name:     "network error",
			rt:       func(*http.Request) (*http.Response, error) { return nil, errors.New("connection refused") },
			kind:     internal.ErrUpstreamUnavailable,
			attempts: 3,
		},
		{
			name:     "non json body",
			rt:       func(*http.Request) (*http.Response, error) { return rawResponse(200, "<html>maintenance</html>"), nil },
			kind:     internal.ErrUpstreamMalformed,
			attempts: 1,
		},
		{
			name:     "missing items",
			rt:       func(*http.Request) (*http.Response, error) { return rawResponse(200, `{"total":3}`), nil },
			kind:     internal.ErrUpstreamMalformed,
			attempts: 1,
		},
		{
			name:     "items not an array",
			rt:       func(*http.Request) (*http.Response, error) { return rawResponse(200, `{"items":{"id":1}}`), nil },
			kind:     internal.ErrUpstreamMalformed,
			attempts: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			client := newTestClient(10, func(r *http.Request) (*http.Response, error) {
				atomic.AddInt32(&calls, 1)
				return tc.rt(r)
			})

			_, _, err := client.FetchPrices(context.Background())
			require.Error(t, err)

			var upErr *Error
			require.True(t, errors.As(err, &upErr))
			assert.Equal(t, tc.kind, upErr.Kind)
			assert.Equal(t, tc.status, upErr.Status)
			assert.Equal(t, "prices", upErr.Resource)
			assert.Equal(t, tc.attempts, atomic.LoadInt32(&calls))
		})
	}
}

func TestFetchGroupsPerSection(t *testing.T) {
	paths := []string{}
	client := newTestClient(10, func(r *http.Request) (*http.Response, error) {
		paths = append(paths, r.URL.Path)
		if strings.Contains(r.URL.Path, "/7/") {
			return jsonResponse(200, map[string]any{"items": []map[string]any{{"id": 1, "descricao": "Graos"}}}), nil
		}
		return jsonResponse(200, map[string]any{"items": []map[string]any{{"id": 1, "secaoId": 9, "descricao": "Limpeza"}}}), nil
	})

	groups, _, err := client.FetchGroups(context.Background(), []int{7, 8})
	require.NoError(t, err)
	assert.Equal(t, []string{"/api/v1/produto/secoes/7/grupos", "/api/v1/produto/secoes/8/grupos"}, paths)
	require.Len(t, groups, 2)
	assert.Equal(t, 7, groups[0].SectionID)
	assert.Equal(t, 9, groups[1].SectionID)
}

func TestCustomAuthHeader(t *testing.T) {
	cfg := config.Config{
		ERPBaseURL:      "https://erp.test/api/",
		ERPAPIKey:       "k1",
		ERPAuthHeader:   "Authorization",
		ERPRateLimitRPS: 1000,
		ERPMaxRetries:   1,
		ERPPageSize:     50,
	}
	client := NewClient(cfg, zap.NewNop())
	client.httpClient = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "k1", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("x-api-key"))
		assert.Equal(t, "descricao", r.URL.Query().Get("sort"))
		return jsonResponse(200, map[string]any{"start": 5, "count": 0, "total": 5, "items": []any{}}), nil
	})}

	page, err := client.FetchPage(context.Background(), "v1/produto/generos", 5, 50, Query{Sort: "descricao"})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Empty(t, page.Items)
}

func TestPriceRecordKeepsRawKeys(t *testing.T) {
	client := newTestClient(10, func(r *http.Request) (*http.Response, error) {
		return rawResponse(200, `{"items":[
			{"id": 1, "produtoId": 10, "idExterno": "  undefined ", "codigoInterno": 778, "precoVenda1": "12,90", "precoOferta1": 9.9},
			{"produtoId": 11, "precoVenda1": 5}
		]}`), nil
	})

	prices, skipped, err := client.FetchPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, 1, skipped)

	p := prices[0]
	assert.Equal(t, 10, p.ProductID)
	require.NotNil(t, p.ExternalID)
	assert.Equal(t, "  undefined ", *p.ExternalID)
	require.NotNil(t, p.InternalCode)
	assert.Equal(t, "778", *p.InternalCode)
	assert.Equal(t, 12.9, p.SalePrice1)
	assert.Equal(t, 9.9, p.OfferPrice1)
}

func TestMissingAPIKey(t *testing.T) {
	client := newTestClient(10, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	client.apiKey = ""

	_, _, err := client.FetchStock(context.Background())
	var upErr *Error
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, internal.ErrUpstreamUnavailable, upErr.Kind)
}
