package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/kuropos/backend-pos/internal/pricing"
	"github.com/kuropos/backend-pos/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	st := store.New(pool)
	seedProducts(ctx, st)
	seedCustomers(ctx, st)

	log.Println("Seeding completed successfully!")
}

func seedProducts(ctx context.Context, st *store.Store) {
	products := []store.Product{
		{Code: "8991001101234", Name: "Instant Noodles Chicken", Stock: 240, BasePrice: 350000, IsTaxable: true},
		{Code: "8991001105678", Name: "Mineral Water 600ml", Stock: 480, BasePrice: 400000, IsTaxable: true},
		{Code: "8992761111122", Name: "Cooking Oil 1L", Stock: 60, BasePrice: 1850000, IsTaxable: true},
		{Code: "8993334445556", Name: "Granulated Sugar", Stock: 85.5, BasePrice: 1600000, IsTaxable: true, AllowDecimalQuantity: true},
		{Code: "8994445556667", Name: "Rice Premium", Stock: 120.25, BasePrice: 1400000, IsTaxable: false, AllowDecimalQuantity: true},
		{Code: "8995556667778", Name: "Eggs per kg", Stock: 42.75, BasePrice: 2800000, IsTaxable: false, AllowDecimalQuantity: true},
		{Code: "8996667778889", Name: "Dish Soap 800ml", Stock: 36, BasePrice: 1250000, IsTaxable: true},
		{Code: "8997778889990", Name: "Toothpaste 190g", Stock: 54, BasePrice: 1100000, IsTaxable: true},
	}

	log.Println("Seeding products...")
	for _, p := range products {
		p.IsActive = true
		if _, err := st.Products.Insert(ctx, p); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			log.Fatalf("Failed to seed product %s: %v", p.Code, err)
		}
	}
}

func seedCustomers(ctx context.Context, st *store.Store) {
	customers := []store.Customer{
		{Fullname: "Budi Santoso", Phone: "081234567801", AllowCredit: true, CreditLimit: pricing.Money(50000000)},
		{Fullname: "Siti Aminah", Phone: "081234567802", AllowCredit: true, CreditLimit: pricing.Money(30000000)},
		{Fullname: "Andi Pratama", Phone: "081234567803", AllowCredit: false},
		{Fullname: "Dewi Lestari", Phone: "081234567804", AllowCredit: true, CreditLimit: pricing.Money(20000000)},
		{Fullname: "Eko Kurniawan", Phone: "081234567805", AllowCredit: false},
	}

	log.Println("Seeding customers...")
	for _, c := range customers {
		c.IsActive = true
		if _, err := st.Customers.Insert(ctx, c); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			log.Fatalf("Failed to seed customer %s: %v", c.Fullname, err)
		}
	}
}
