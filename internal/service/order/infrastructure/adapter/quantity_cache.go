package adapter

import (
	"context"
	"sync"
	"time"

	"demoshop/internal/pkg/logger"
	"demoshop/internal/service/order/domain/port"

	"golang.org/x/sync/singleflight"
)

// CachedInventoryService 给只读展示路径加一层可售量缓存，
// 实现 port.InventoryReader。下单流程不走这里：扣减必须看到
// 账本的当前值，缓存只服务查询侧。
//
// 整个缓存共用一个过期时间：窗口从第一次成功回源算起，到期后
// 全量清空，下一次成功回源开启新窗口。回源失败按 0 降级返回，
// 但失败结果不进缓存，远端恢复后下一次读立刻拿到新值。
type CachedInventoryService struct {
	source port.QuantitySource
	window time.Duration

	mu        sync.Mutex
	cache     map[string]int
	expiresAt time.Time

	group singleflight.Group
}

func NewCachedInventoryService(source port.QuantitySource, window time.Duration) *CachedInventoryService {
	return &CachedInventoryService{
		source: source,
		window: window,
		cache:  make(map[string]int),
	}
}

// evictExpiredLocked 窗口到期时清空全部条目。新窗口要等下一次
// 成功回源才开启，所以反复失败不会把空窗口越拖越长。
func (c *CachedInventoryService) evictExpiredLocked(now time.Time) {
	if !c.expiresAt.IsZero() && now.After(c.expiresAt) {
		c.cache = make(map[string]int)
		c.expiresAt = time.Time{}
	}
}

// storeLocked 写入成功回源的结果，必要时开启新窗口。
func (c *CachedInventoryService) storeLocked(now time.Time, entries map[string]int) {
	if c.expiresAt.IsZero() {
		c.expiresAt = now.Add(c.window)
	}
	for id, qty := range entries {
		c.cache[id] = qty
	}
}

func (c *CachedInventoryService) GetQuantity(ctx context.Context, productID string) int {
	c.mu.Lock()
	c.evictExpiredLocked(time.Now())
	if qty, ok := c.cache[productID]; ok {
		c.mu.Unlock()
		return qty
	}
	c.mu.Unlock()

	// singleflight 合并同一商品的并发回源
	v, _, _ := c.group.Do(productID, func() (interface{}, error) {
		qty, err := c.source.FetchQuantity(ctx, productID)
		if err != nil {
			logger.Ctx(ctx).Warn().Str("product_id", productID).Err(err).
				Msg("Inventory quantity fetch failed, serving zero uncached")
			return 0, nil
		}
		c.mu.Lock()
		c.storeLocked(time.Now(), map[string]int{productID: qty})
		c.mu.Unlock()
		return qty, nil
	})
	return v.(int)
}

func (c *CachedInventoryService) GetQuantities(ctx context.Context, productIDs []string) map[string]int {
	result := make(map[string]int, len(productIDs))
	var missing []string

	c.mu.Lock()
	c.evictExpiredLocked(time.Now())
	for _, id := range productIDs {
		if qty, ok := c.cache[id]; ok {
			result[id] = qty
		} else {
			missing = append(missing, id)
		}
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return result
	}

	fetched, err := c.source.FetchQuantities(ctx, missing)
	if err != nil {
		logger.Ctx(ctx).Warn().Int("products", len(missing)).Err(err).
			Msg("Inventory batch fetch failed, serving zeros uncached")
		for _, id := range missing {
			result[id] = 0
		}
		return result
	}

	c.mu.Lock()
	c.storeLocked(time.Now(), fetched)
	c.mu.Unlock()
	for id, qty := range fetched {
		result[id] = qty
	}
	return result
}

// Invalidate 清空整个缓存并关闭当前窗口，下一次读触发回源。
func (c *CachedInventoryService) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]int)
	c.expiresAt = time.Time{}
	c.mu.Unlock()
	logger.Logger().Debug().Msg("Inventory quantity cache invalidated")
}
