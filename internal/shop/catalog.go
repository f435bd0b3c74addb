package shop

import (
	"context"

	"github.com/kuitang/shop-e2e/internal/db"
)

// DefaultCatalog is the product list the shop starts with.
var DefaultCatalog = []db.Product{
	{ID: 1, Name: "Blue Top", Price: "Rs. 500", Brand: "Polo", UserType: "Women", Category: "Tops",
		Description: "A **classic blue top** for everyday wear.\n\n- Material: 100% cotton\n- Fit: regular"},
	{ID: 2, Name: "Men Tshirt", Price: "Rs. 400", Brand: "H&M", UserType: "Men", Category: "Tshirts",
		Description: "Soft crew-neck tee.\n\n- Material: cotton blend\n- Care: machine wash"},
	{ID: 3, Name: "Sleeveless Dress", Price: "Rs. 1000", Brand: "Madame", UserType: "Women", Category: "Dress",
		Description: "Light *sleeveless* dress for summer evenings."},
	{ID: 4, Name: "Stylish Dress", Price: "Rs. 1500", Brand: "Madame", UserType: "Women", Category: "Dress",
		Description: "Tailored dress with a fitted waist."},
	{ID: 5, Name: "Winter Top", Price: "Rs. 600", Brand: "Mast & Harbour", UserType: "Women", Category: "Tops",
		Description: "Warm knit top.\n\n- Material: wool blend"},
	{ID: 6, Name: "Summer White Top", Price: "Rs. 400", Brand: "Mast & Harbour", UserType: "Women", Category: "Tops",
		Description: "Breathable white top."},
	{ID: 7, Name: "Madame Top For Women", Price: "Rs. 1000", Brand: "Madame", UserType: "Women", Category: "Tops",
		Description: "Embroidered top, see the [size guide](https://automationexercise.com/products)."},
	{ID: 8, Name: "Fancy Green Top", Price: "Rs. 700", Brand: "Polo", UserType: "Women", Category: "Tops",
		Description: "Bright green top with a relaxed cut."},
	{ID: 11, Name: "Little Girls Mr. Panda Shirt", Price: "Rs. 543", Brand: "Allen Solly Junior", UserType: "Kids", Category: "Tops & Shirts",
		Description: "Playful printed shirt for kids."},
	{ID: 12, Name: "Sleeves Printed Top - White", Price: "Rs. 499", Brand: "Kookie Kids", UserType: "Kids", Category: "Tops & Shirts",
		Description: "Printed top with short sleeves."},
}

// SeedCatalog writes DefaultCatalog. Existing rows with the same IDs are replaced.
func SeedCatalog(ctx context.Context, store *db.DB) error {
	return store.UpsertProducts(ctx, DefaultCatalog)
}
