package db

import (
	"context"
	"log"
	"time"

	"github.com/ecomstack/minishop/internal/cache"
	"github.com/ecomstack/minishop/internal/models"
)

// ProductSource is the authoritative store behind the cache.
type ProductSource interface {
	GetAll() ([]models.Product, error)
	GetByID(id int) (*models.Product, error)
	Create(req models.CreateProductRequest) (*models.Product, error)
	Update(id int, req models.UpdateProductRequest) (*models.Product, error)
	Delete(id int) error
}

// CachedProductRepository decorates the product store with read-path caching
// and write-through invalidation: every mutation removes the affected keys
// before returning success, and reads repopulate lazily under a TTL.
type CachedProductRepository struct {
	source       ProductSource
	cache        cache.Store
	listKey      string
	ttl          time.Duration
	fetchTimeout time.Duration
}

func NewCachedProductRepository(source ProductSource, store cache.Store, listKey string, ttl, fetchTimeout time.Duration) *CachedProductRepository {
	return &CachedProductRepository{
		source:       source,
		cache:        store,
		listKey:      listKey,
		ttl:          ttl,
		fetchTimeout: fetchTimeout,
	}
}

// GetAll returns the product listing, cached under the listing key.
func (r *CachedProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	return cache.GetOrPopulate(ctx, r.cache, r.listKey, r.ttl, r.fetchTimeout,
		func(context.Context) ([]models.Product, error) {
			log.Printf("💾 Cache MISS: %s - fetching from DB", r.listKey)
			return r.source.GetAll()
		})
}

// GetByID returns a single product, cached per product id.
func (r *CachedProductRepository) GetByID(ctx context.Context, id int) (*models.Product, error) {
	return cache.GetOrPopulate(ctx, r.cache, cache.ProductKey(id), r.ttl, r.fetchTimeout,
		func(context.Context) (*models.Product, error) {
			log.Printf("💾 Cache MISS: product %d - fetching from DB", id)
			return r.source.GetByID(id)
		})
}

// Create inserts a new product and invalidates the listing and the new
// product's own entry: a read of the id before it existed may have cached a
// negative result that must not outlive the create.
func (r *CachedProductRepository) Create(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	product, err := r.source.Create(req)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, cache.ProductKey(product.ID), r.listKey)
	return product, nil
}

// Update modifies a product and invalidates both its entry and the listing.
func (r *CachedProductRepository) Update(ctx context.Context, id int, req models.UpdateProductRequest) (*models.Product, error) {
	product, err := r.source.Update(id, req)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, cache.ProductKey(id), r.listKey)
	return product, nil
}

// Delete removes a product and invalidates both its entry and the listing.
func (r *CachedProductRepository) Delete(ctx context.Context, id int) error {
	if err := r.source.Delete(id); err != nil {
		return err
	}
	r.invalidate(ctx, cache.ProductKey(id), r.listKey)
	return nil
}

func (r *CachedProductRepository) invalidate(ctx context.Context, keys ...string) {
	if err := r.cache.Invalidate(ctx, keys...); err != nil {
		log.Printf("⚠️ Failed to invalidate cache %v: %v", keys, err)
		return
	}
	log.Printf("🗑️ Cache invalidated: %v", keys)
}
