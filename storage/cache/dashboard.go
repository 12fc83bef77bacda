package cache

import (
	"context"

	"github.com/chuodev/chuo/core/alerts"
)

// DashboardCache stores computed dashboard snapshots per tenant so that
// repeated reads do not re-scan the full ledgers.
type DashboardCache struct {
	cache *Cache
}

var _ alerts.SnapshotCache = (*DashboardCache)(nil) // interface compliance check

func NewDashboardCache(cache *Cache) *DashboardCache {
	return &DashboardCache{cache: cache}
}

func dashboardKey(tenantID string) string { return "dashboard:" + tenantID }

func (dc *DashboardCache) GetDashboard(ctx context.Context, tenantID string) (alerts.Dashboard, bool) {
	var d alerts.Dashboard
	if err := dc.cache.Get(ctx, dashboardKey(tenantID), &d); err != nil {
		return alerts.Dashboard{}, false
	}
	return d, true
}

func (dc *DashboardCache) SetDashboard(ctx context.Context, d alerts.Dashboard) {
	_ = dc.cache.Set(ctx, dashboardKey(d.TenantID), d)
}
