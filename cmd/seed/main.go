package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"bizinsight-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	productNames = []string{"Premium T-Shirt", "Classic Jeans", "Running Shoes", "Leather Jacket", "Cotton Hoodie", "Sports Cap", "Denim Shorts", "Winter Coat", "Sneakers", "Backpack"}
	categories   = []string{"Apparel", "Footwear", "Accessories", "Outerwear"}
	firstNames   = []string{"John", "Jane", "Michael", "Sarah", "David", "Emma", "Robert", "Lisa", "William", "Jennifer"}
	lastNames    = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez"}
	cities       = []string{"New York", "Los Angeles", "Chicago", "Houston", "Phoenix", "Philadelphia", "San Antonio", "San Diego", "Dallas", "San Jose"}
	countries    = []string{"USA", "Canada", "UK", "Australia"}
	regions      = []string{"North", "South", "East", "West"}
	statuses     = []string{"completed", "completed", "completed", "pending", "cancelled"}
	campaignKind = []string{"search", "display", "social_media", "email", "influencer"}
	platforms    = []string{"google_ads", "facebook", "instagram", "tiktok"}
)

func main() {
	truncate := flag.Bool("truncate", false, "delete existing demo rows first")
	orders := flag.Int("orders", 500, "number of orders to create")
	flag.Parse()

	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, database.PoolConfig{MaxIdleConns: 2, MaxOpenConns: 4, ConnMaxLifetime: time.Hour, Quiet: true})
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&Product{}, &Customer{}, &Order{}, &OrderItem{}, &MarketingCampaign{}); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	if *truncate {
		for _, table := range []string{"order_items", "orders", "marketing_campaigns", "products", "customers"} {
			if err := db.Exec("DELETE FROM " + table).Error; err != nil {
				log.Fatalf("Error truncating %s: %v", table, err)
			}
		}
		log.Println("Existing demo rows removed")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now()
	start := now.AddDate(-2, 0, 0)

	if err := db.Transaction(func(tx *gorm.DB) error {
		products := seedProducts(rng, start, now)
		if err := tx.CreateInBatches(products, 100).Error; err != nil {
			return fmt.Errorf("products: %w", err)
		}
		customers := seedCustomers(rng, start, now)
		if err := tx.CreateInBatches(customers, 100).Error; err != nil {
			return fmt.Errorf("customers: %w", err)
		}
		if err := tx.CreateInBatches(seedOrders(rng, *orders, products, customers, start, now), 100).Error; err != nil {
			return fmt.Errorf("orders: %w", err)
		}
		if err := tx.CreateInBatches(seedCampaigns(rng, now), 100).Error; err != nil {
			return fmt.Errorf("campaigns: %w", err)
		}
		return nil
	}); err != nil {
		log.Fatalf("Error seeding demo data: %v", err)
	}

	log.Println("Demo data seeding completed!")
}

func seedProducts(rng *rand.Rand, start, end time.Time) []*Product {
	products := make([]*Product, 0, 50)
	for i := 0; i < 50; i++ {
		products = append(products, &Product{
			Id:        uuid.New(),
			Name:      fmt.Sprintf("%s %d", productNames[i%len(productNames)], i+1),
			Sku:       fmt.Sprintf("SKU-%04d", i+1),
			Price:     randomAmount(rng, 19.99, 199.99),
			Category:  categories[i%len(categories)],
			Stock:     rng.Intn(500),
			CreatedAt: randomTime(rng, start, end),
		})
	}
	return products
}

func seedCustomers(rng *rand.Rand, start, end time.Time) []*Customer {
	customers := make([]*Customer, 0, 100)
	for i := 0; i < 100; i++ {
		first, last := firstNames[i%len(firstNames)], lastNames[i%len(lastNames)]
		customers = append(customers, &Customer{
			Id:        uuid.New(),
			Email:     fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), i),
			FirstName: first,
			LastName:  last,
			City:      cities[i%len(cities)],
			Country:   countries[i%len(countries)],
			CreatedAt: randomTime(rng, start, end),
		})
	}
	return customers
}

func seedOrders(rng *rand.Rand, n int, products []*Product, customers []*Customer, start, end time.Time) []*Order {
	orders := make([]*Order, 0, n)
	for i := 0; i < n; i++ {
		order := &Order{
			Id:         uuid.New(),
			CustomerId: customers[rng.Intn(len(customers))].Id,
			Status:     statuses[rng.Intn(len(statuses))],
			Region:     regions[rng.Intn(len(regions))],
			CreatedAt:  randomTime(rng, start, end),
		}

		total := decimal.Zero
		for j := 0; j < 1+rng.Intn(4); j++ {
			p := products[rng.Intn(len(products))]
			qty := 1 + rng.Intn(3)
			order.Items = append(order.Items, OrderItem{
				Id:        uuid.New(),
				OrderId:   order.Id,
				ProductId: p.Id,
				Quantity:  qty,
				UnitPrice: p.Price,
			})
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(qty))))
		}
		order.TotalAmount = total
		orders = append(orders, order)
	}
	return orders
}

func seedCampaigns(rng *rand.Rand, now time.Time) []*MarketingCampaign {
	campaigns := make([]*MarketingCampaign, 0, 20)
	for i := 0; i < 20; i++ {
		startDate := now.AddDate(0, -rng.Intn(18), -rng.Intn(28))
		impressions := int64(10000 + rng.Intn(490000))
		clicks := impressions * int64(1+rng.Intn(5)) / 100
		budget := randomAmount(rng, 1000, 50000)
		campaigns = append(campaigns, &MarketingCampaign{
			Id:          uuid.New(),
			Name:        fmt.Sprintf("Campaign %d", i+1),
			Type:        campaignKind[i%len(campaignKind)],
			Platform:    platforms[i%len(platforms)],
			Budget:      budget,
			SpentAmount: budget.Mul(decimal.NewFromFloat(0.3 + rng.Float64()*0.7)).Round(2),
			Impressions: impressions,
			Clicks:      clicks,
			Conversions: clicks * int64(1+rng.Intn(10)) / 100,
			StartDate:   startDate,
			EndDate:     startDate.AddDate(0, 1+rng.Intn(3), 0),
		})
	}
	return campaigns
}

func randomAmount(rng *rand.Rand, min, max float64) decimal.Decimal {
	return decimal.NewFromFloat(min + rng.Float64()*(max-min)).Round(2)
}

func randomTime(rng *rand.Rand, start, end time.Time) time.Time {
	return start.Add(time.Duration(rng.Int63n(int64(end.Sub(start)))))
}
