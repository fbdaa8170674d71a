package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_RemoteHit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/barcode/9999000011", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Coffee","price":12.99}`))
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, time.Second)
	product, ok := resolver.Resolve(context.Background(), "9999000011")
	require.True(t, ok)
	assert.Equal(t, "Coffee", product.Name)
	assert.Equal(t, int64(1299), product.PriceCents)
}

func TestResolver_FallbackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, time.Second)

	// 远端失败时静默降级到内置价表
	product, ok := resolver.Resolve(context.Background(), "1234567890")
	require.True(t, ok)
	assert.Equal(t, "Milk", product.Name)
	assert.Equal(t, int64(300), product.PriceCents)
}

func TestResolver_FallbackOnUnreachable(t *testing.T) {
	// 不可达的地址
	resolver := NewResolver("http://127.0.0.1:1", 100*time.Millisecond)

	product, ok := resolver.Resolve(context.Background(), "1111222233")
	require.True(t, ok)
	assert.Equal(t, "Bread", product.Name)
	assert.Equal(t, int64(200), product.PriceCents)
}

func TestResolver_UnknownBarcode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, time.Second)

	// 远端404、价表也没有，返回未找到
	_, ok := resolver.Resolve(context.Background(), "0000000000")
	assert.False(t, ok)
}

func TestResolver_RemoteOverridesFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Organic Milk","price":4.50}`))
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, time.Second)

	// 远端应答优先于价表
	product, ok := resolver.Resolve(context.Background(), "1234567890")
	require.True(t, ok)
	assert.Equal(t, "Organic Milk", product.Name)
	assert.Equal(t, int64(450), product.PriceCents)
}

func TestResolver_BadJSONFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, time.Second)
	product, ok := resolver.Resolve(context.Background(), "6677889900")
	require.True(t, ok)
	assert.Equal(t, "Eggs", product.Name)
}

func TestResolver_Probe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		w.Write([]byte(`{"products":[{"name":"Milk","price":3.00},{"name":"Bread","price":2.00}]}`))
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, time.Second)
	assert.NoError(t, resolver.Probe(context.Background()))

	// 探测失败返回错误但不影响解析
	bad := NewResolver("http://127.0.0.1:1", 100*time.Millisecond)
	assert.Error(t, bad.Probe(context.Background()))
	_, ok := bad.Resolve(context.Background(), "8888999900")
	assert.True(t, ok)
}

func TestDollarsToCents(t *testing.T) {
	tests := []struct {
		name    string
		dollars float64
		want    int64
	}{
		{"整数金额", 3.00, 300},
		{"普通小数", 12.99, 1299},
		{"半分向上", 0.125, 13},
		{"零", 0, 0},
		{"一分", 0.01, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DollarsToCents(tt.dollars))
		})
	}
}

func TestFallbackTable(t *testing.T) {
	table := fallbackTable()
	require.Len(t, table, 9)

	// 抽查几项价格
	assert.Equal(t, int64(300), table["1234567890"].PriceCents)
	assert.Equal(t, int64(85), table["5555666677"].PriceCents)
	assert.Equal(t, "Banana", table["2222333344"].Name)
}
