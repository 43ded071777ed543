package warehouse

import "fmt"

// The orders table doubles as the neighborhood source: neighborhood boundary
// rows live alongside order rows in the same denormalized copy.
const (
	ordersTableName        = "marketplace_order_copy"
	neighborhoodsTableName = "marketplace_order_copy"
)

func (s *Store) ordersTable() string {
	return fmt.Sprintf("`%s.%s`", s.dataset, ordersTableName)
}

func (s *Store) neighborhoodsTable() string {
	return fmt.Sprintf("`%s.%s`", s.dataset, neighborhoodsTableName)
}

// baseRetailerQuery is the shared per-seller aggregation over the orders
// table; callers append WHERE and GROUP BY clauses.
func (s *Store) baseRetailerQuery() string {
	return fmt.Sprintf(`
        SELECT
            Seller_ID as seller_id,
            Seller_Name as seller_name,
            Store_Name as store_name,
            Internal_Seller_Latitude as internal_seller_latitude,
            Internal_Seller_Longitude as internal_seller_longitude,
            SUM(Gross_TTV_USD) as gross_ttv_usd,
            SUM(Revenue_USD) as revenue_usd,
            COUNT(DISTINCT Order_ID) as total_orders,
            ARRAY_AGG(DISTINCT Product_Category) as product_categories
        FROM %s`, s.ordersTable())
}

const retailerGroupBy = `
        GROUP BY
            Seller_ID,
            Seller_Name,
            Store_Name,
            Internal_Seller_Latitude,
            Internal_Seller_Longitude`

func (s *Store) citiesQuery() string {
	return fmt.Sprintf(`
        SELECT DISTINCT
            Shipping_City as city
        FROM %s
        WHERE
            Shipping_City IS NOT NULL
            AND Shipping_City != ''
        ORDER BY city ASC`, s.ordersTable())
}

func (s *Store) cityMetricsQuery() string {
	return fmt.Sprintf(`
        WITH retailer_metrics AS (
            SELECT
                Shipping_City as city,
                SUM(Revenue_USD) as total_revenue_usd,
                COUNT(DISTINCT Seller_ID) as total_retailers,
                AVG(Gross_TTV_USD) as avg_ttv_usd
            FROM %s
            WHERE Shipping_City = @city
            GROUP BY Shipping_City
        )
        SELECT
            r.*,
            ARRAY_AGG(STRUCT(
                n.name,
                n.boundaries,
                n.avg_ttv_usd,
                n.retailer_density,
                n.avg_order_frequency,
                n.total_revenue_usd
            )) as neighborhoods
        FROM retailer_metrics r
        LEFT JOIN %s n
        ON r.city = n.city
        GROUP BY r.city, r.total_revenue_usd, r.total_retailers, r.avg_ttv_usd`,
		s.ordersTable(), s.neighborhoodsTable())
}

func (s *Store) neighborhoodMetricsQuery() string {
	return fmt.Sprintf(`
        WITH retailer_metrics AS (
            %s
            WHERE Shipping_City = @city
            %s
        )
        SELECT
            n.name,
            n.boundaries,
            AVG(r.gross_ttv_usd) as avg_ttv_usd,
            COUNT(DISTINCT r.seller_id) as retailer_density,
            AVG(r.total_orders) as avg_order_frequency,
            SUM(r.revenue_usd) as total_revenue_usd,
            ARRAY_AGG(
                STRUCT(
                    r.seller_id,
                    r.seller_name,
                    r.store_name,
                    r.internal_seller_latitude,
                    r.internal_seller_longitude,
                    r.gross_ttv_usd,
                    r.revenue_usd,
                    r.total_orders,
                    r.product_categories
                )
            ) as retailers
        FROM %s n
        LEFT JOIN retailer_metrics r
        ON ST_CONTAINS(
            n.boundaries,
            ST_POINT(r.internal_seller_longitude, r.internal_seller_latitude)
        )
        WHERE n.city = @city
        AND n.name = @neighborhood
        GROUP BY n.name, n.boundaries`,
		s.baseRetailerQuery(), retailerGroupBy, s.neighborhoodsTable())
}

func (s *Store) retailerMetricsQuery() string {
	return fmt.Sprintf(`
        %s
        WHERE Seller_ID = @seller_id
        %s`, s.baseRetailerQuery(), retailerGroupBy)
}

func (s *Store) searchRetailersQuery(withCity bool) string {
	q := fmt.Sprintf(`
        %s
        WHERE LOWER(Store_Name) LIKE LOWER(@query)`, s.baseRetailerQuery())
	if withCity {
		q += `
        AND Shipping_City = @city`
	}
	q += retailerGroupBy + `
        LIMIT 100`
	return q
}
