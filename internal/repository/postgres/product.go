package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

const productColumns = `id, name, slug, description, category, price, sale_price, stock, created_at, updated_at`

// Sort keys map to SQL expressions here and nowhere else, so client input
// never reaches the ORDER BY clause.
var productSortColumns = map[string]string{
	domain.SortByName:      "name",
	domain.SortByPrice:     "COALESCE(sale_price, price)",
	domain.SortByCreatedAt: "created_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	ctx, end := database.TraceQuery(ctx, "products.Create", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Slug,
		p.Description,
		p.Category,
		p.Price,
		p.SalePrice,
		p.Stock,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if database.IsPgCode(err, database.CodeUniqueViolation) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by id.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "products.GetByID", query)
	defer func() { end(err) }()

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

// Update overwrites the mutable fields of a product and refreshes its
// UpdatedAt from the database clock.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (err error) {
	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, category = $4,
			price = $5, sale_price = $6, stock = $7, updated_at = now()
		WHERE id = $8
		RETURNING updated_at`

	ctx, end := database.TraceQuery(ctx, "products.Update", query)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, query,
		p.Name,
		p.Slug,
		p.Description,
		p.Category,
		p.Price,
		p.SalePrice,
		p.Stock,
		p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return apperrors.ErrNotFound
		case database.IsPgCode(err, database.CodeUniqueViolation):
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// Delete removes a product. Orders keep their copied line items.
func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "products.Delete", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Search returns products matching filter. Name matches are
// case-insensitive substrings; price bounds apply to the effective price.
func (r *ProductRepository) Search(ctx context.Context, f domain.ProductFilter, page pagination.Params) (_ []domain.Product, _ int, err error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Name != "" {
		conditions = append(conditions, "name ILIKE '%' || "+arg(likeEscaper.Replace(f.Name))+" || '%'")
	}
	if f.Category != "" {
		conditions = append(conditions, "lower(category) = lower("+arg(f.Category)+")")
	}
	if f.MinPrice.Valid {
		conditions = append(conditions, "COALESCE(sale_price, price) >= "+arg(f.MinPrice.Decimal))
	}
	if f.MaxPrice.Valid {
		conditions = append(conditions, "COALESCE(sale_price, price) <= "+arg(f.MaxPrice.Decimal))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + productColumns + `, COUNT(*) OVER() AS total_count FROM products`)
	if len(conditions) > 0 {
		b.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}

	sortCol, ok := productSortColumns[f.SortBy]
	if !ok {
		sortCol = productSortColumns[domain.SortByCreatedAt]
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	b.WriteString(" ORDER BY " + sortCol + " " + dir + ", id")

	if page.Paged {
		b.WriteString(" LIMIT " + arg(page.Limit()) + " OFFSET " + arg(page.Offset))
	}
	query := b.String()

	ctx, end := database.TraceQuery(ctx, "products.Search", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	total := 0
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Slug, &p.Description, &p.Category,
			&p.Price, &p.SalePrice, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, total, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Category,
		&p.Price, &p.SalePrice, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
