package adapter

import (
	"context"
	"net/url"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/pkg/httpclient"
	"demoshop/internal/pkg/logger"
)

// 库存服务的应答信封。success=false 是业务失败，
// 具体分类放在 code 里。
type quantityEnvelope struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Success   bool   `json:"success"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type mutateQuantityRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type quantitiesRequest struct {
	ProductIDs []string `json:"productIds"`
}

type quantitiesEnvelope struct {
	Items []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// InventoryHTTPAdapter 实现 port.InventoryService。
// 读路径降级为零值，写路径如实返回失败，下单侧据此 fail-closed。
type InventoryHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

// NewInventoryHTTPAdapter 创建一个新的库存服务适配器。
func NewInventoryHTTPAdapter(client *httpclient.Client, baseURL string) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client, baseURL: baseURL}
}

// FetchQuantity 查询可售量，失败时如实返回错误。
// 缓存装饰器从这里回源，降级零值不会被误存。
func (a *InventoryHTTPAdapter) FetchQuantity(ctx context.Context, productID string) (int, error) {
	params := url.Values{}
	params.Set("productId", productID)

	var resp quantityEnvelope
	if err := a.client.GetJSON(ctx, a.baseURL+"/inventory/quantity", params, &resp); err != nil {
		return 0, apperr.Wrap(err, apperr.Unavailable, "inventory quantity call failed")
	}
	if !resp.Success {
		return 0, apperr.Newf(apperr.ParseKind(resp.Code), "inventory quantity rejected: %s", resp.Message)
	}
	return resp.Quantity, nil
}

// FetchQuantities 批量查询可售量。成功时远端缺失的 id 补 0。
func (a *InventoryHTTPAdapter) FetchQuantities(ctx context.Context, productIDs []string) (map[string]int, error) {
	var resp quantitiesEnvelope
	err := a.client.PostJSON(ctx, a.baseURL+"/inventory/quantities", quantitiesRequest{ProductIDs: productIDs}, &resp)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Unavailable, "inventory batch call failed")
	}
	if !resp.Success {
		return nil, apperr.Newf(apperr.Internal, "inventory batch rejected: %s", resp.Message)
	}

	result := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		result[id] = 0
	}
	for _, item := range resp.Items {
		result[item.ProductID] = item.Quantity
	}
	return result, nil
}

// GetQuantity 查询可售量。传输失败或业务失败时一律按 0 处理，
// 宁可拒单也不超卖。
func (a *InventoryHTTPAdapter) GetQuantity(ctx context.Context, productID string) int {
	qty, err := a.FetchQuantity(ctx, productID)
	if err != nil {
		logger.Ctx(ctx).Warn().Str("product_id", productID).Err(err).
			Msg("Inventory quantity lookup failed, degrading to zero")
		return 0
	}
	return qty
}

// GetQuantities 批量查询可售量。整体失败时所有 id 都是 0，
// 远端缺失的 id 也补 0。
func (a *InventoryHTTPAdapter) GetQuantities(ctx context.Context, productIDs []string) map[string]int {
	result, err := a.FetchQuantities(ctx, productIDs)
	if err != nil {
		logger.Ctx(ctx).Warn().Int("products", len(productIDs)).Err(err).
			Msg("Inventory batch lookup failed, degrading all to zero")
		result = make(map[string]int, len(productIDs))
		for _, id := range productIDs {
			result[id] = 0
		}
	}
	return result
}

// UpdateQuantity 覆盖写库存量，任何失败都返回 false。
func (a *InventoryHTTPAdapter) UpdateQuantity(ctx context.Context, productID string, quantity int) bool {
	var resp quantityEnvelope
	err := a.client.PostJSON(ctx, a.baseURL+"/inventory/quantity/update",
		mutateQuantityRequest{ProductID: productID, Quantity: quantity}, &resp)
	if err != nil {
		logger.Ctx(ctx).Warn().Str("product_id", productID).Err(err).
			Msg("Inventory update failed")
		return false
	}
	return resp.Success
}

// Consume 原子扣减可售量。传输失败归为 Unavailable，
// 业务拒绝按信封里的 code 还原错误分类。
func (a *InventoryHTTPAdapter) Consume(ctx context.Context, productID string, amount int) error {
	var resp quantityEnvelope
	err := a.client.PostJSON(ctx, a.baseURL+"/inventory/quantity/consume",
		mutateQuantityRequest{ProductID: productID, Quantity: amount}, &resp)
	if err != nil {
		return apperr.Wrap(err, apperr.Unavailable, "inventory consume call failed")
	}
	if !resp.Success {
		return apperr.Newf(apperr.ParseKind(resp.Code), "inventory consume rejected: %s", resp.Message)
	}
	return nil
}
