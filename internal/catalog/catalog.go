// Package catalog 提供商品条码解析。
// 优先查询远端商品服务，请求失败时静默降级到内置演示价表。
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/wfunc/checkout-kiosk/internal/errors"
	"github.com/wfunc/checkout-kiosk/internal/logger"
	"go.uber.org/zap"
)

// Product 商品信息
type Product struct {
	Barcode    string `json:"barcode"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

// remoteProduct 远端商品服务的应答格式（价格为十进制元）
type remoteProduct struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// remoteProductList 远端商品列表应答
type remoteProductList struct {
	Products []remoteProduct `json:"products"`
}

// Resolver 商品解析器
type Resolver struct {
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
	fallback map[string]Product
}

// NewResolver 创建商品解析器
func NewResolver(baseURL string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
		logger:   logger.GetModuleLogger("catalog"),
		fallback: fallbackTable(),
	}
}

// Resolve 按条码解析商品。
// 远端失败只降级不报错，两边都查不到才返回false。
func (r *Resolver) Resolve(ctx context.Context, barcode string) (Product, bool) {
	product, err := r.remoteLookup(ctx, barcode)
	if err == nil {
		return product, true
	}

	r.logger.Debug("远端商品查询失败，使用内置价表",
		zap.String("barcode", barcode),
		zap.Error(err))

	product, ok := r.fallback[barcode]
	return product, ok
}

// Probe 启动时探测远端商品服务连通性，失败不致命
func (r *Resolver) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/products", nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCatalogRequest, "构造探测请求失败")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCatalogRequest, "商品服务不可达")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrCatalogStatus, "商品服务应答异常: %d", resp.StatusCode)
	}

	var list remoteProductList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return errors.Wrap(err, errors.ErrCatalogDecode, "商品列表解析失败")
	}

	r.logger.Info("商品服务探测成功",
		zap.String("base_url", r.baseURL),
		zap.Int("products", len(list.Products)))
	return nil
}

// remoteLookup 查询远端商品服务
func (r *Resolver) remoteLookup(ctx context.Context, barcode string) (Product, error) {
	url := fmt.Sprintf("%s/products/barcode/%s", r.baseURL, barcode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Product{}, errors.Wrap(err, errors.ErrCatalogRequest, "构造查询请求失败")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Product{}, errors.Wrap(err, errors.ErrCatalogRequest, "商品查询请求失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Product{}, errors.Newf(errors.ErrCatalogStatus, "商品查询应答异常: %d", resp.StatusCode)
	}

	var remote remoteProduct
	if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
		return Product{}, errors.Wrap(err, errors.ErrCatalogDecode, "商品应答解析失败")
	}
	if remote.Name == "" {
		return Product{}, errors.New(errors.ErrCatalogDecode, "商品应答缺少名称")
	}

	return Product{
		Barcode:    barcode,
		Name:       remote.Name,
		PriceCents: DollarsToCents(remote.Price),
	}, nil
}

// DollarsToCents 十进制元转分，四舍五入（远离零）
func DollarsToCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

// fallbackTable 内置演示价表
func fallbackTable() map[string]Product {
	products := []Product{
		{Barcode: "1234567890", Name: "Milk", PriceCents: 300},
		{Barcode: "1111222233", Name: "Bread", PriceCents: 200},
		{Barcode: "6677889900", Name: "Eggs", PriceCents: 350},
		{Barcode: "4444555566", Name: "Cheese", PriceCents: 450},
		{Barcode: "7777888899", Name: "Butter", PriceCents: 275},
		{Barcode: "3333444455", Name: "Yogurt", PriceCents: 125},
		{Barcode: "8888999900", Name: "Apple", PriceCents: 75},
		{Barcode: "2222333344", Name: "Banana", PriceCents: 50},
		{Barcode: "5555666677", Name: "Orange", PriceCents: 85},
	}

	table := make(map[string]Product, len(products))
	for _, p := range products {
		table[p.Barcode] = p
	}
	return table
}
