package pages

import (
	"fmt"
	"strings"

	"github.com/kuitang/shop-e2e/internal/browser"
)

const (
	productGrid  = ".features_items"
	productNames = ".features_items .productinfo p"
	productName  = ".product-information h2"
	productPrice = ".product-information span span"
	productBody  = ".product-information .description"
)

// ProductsPage lists the catalog.
type ProductsPage struct {
	*browser.BasePage
	site Site
}

// Products returns the catalog page of the site.
func (s Site) Products(sess browser.Session) *ProductsPage {
	return &ProductsPage{BasePage: s.page(sess, "products", "/products"), site: s}
}

// ProductNames returns the names in listing order.
func (p *ProductsPage) ProductNames() ([]string, error) {
	if _, err := browser.WaitForElement(p.Session(), productGrid, p.site.Wait); err != nil {
		return nil, err
	}
	names, err := p.Session().Locator(productNames).AllTextContents()
	if err != nil {
		return nil, fmt.Errorf("read product names: %w", err)
	}
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	return names, nil
}

// OpenProduct follows the "View Product" link of product id.
func (p *ProductsPage) OpenProduct(id int) (*ProductDetailsPage, error) {
	if err := p.site.click(p.Session(), fmt.Sprintf(`a[href="/product_details/%d"]`, id)); err != nil {
		return nil, err
	}
	return p.site.ProductDetails(p.Session(), id), nil
}

// ProductDetailsPage shows one product.
type ProductDetailsPage struct {
	*browser.BasePage
	site Site
}

// ProductDetails returns the details page of product id.
func (s Site) ProductDetails(sess browser.Session, id int) *ProductDetailsPage {
	return &ProductDetailsPage{BasePage: s.page(sess, "product_details", fmt.Sprintf("/product_details/%d", id)), site: s}
}

// ProductName returns the product's name.
func (p *ProductDetailsPage) ProductName() (string, error) {
	return p.site.text(p.Session(), productName)
}

// Price returns the displayed price, e.g. "Rs. 500".
func (p *ProductDetailsPage) Price() (string, error) {
	return p.site.text(p.Session(), productPrice)
}

// Description returns the rendered description text.
func (p *ProductDetailsPage) Description() (string, error) {
	return p.site.text(p.Session(), productBody)
}
