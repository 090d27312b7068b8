// Package catalog is the static, read-only bouquet catalog.
package catalog

// Product is a catalog entry. Prices are whole rubles.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Catalog resolves products by id.
type Catalog interface {
	Lookup(id string) (Product, bool)
	All() []Product
}

// Static is an in-memory Catalog.
type Static struct {
	products []Product
	byID     map[string]Product
}

// NewStatic builds a Catalog from a fixed product list.
func NewStatic(products []Product) *Static {
	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &Static{products: products, byID: byID}
}

// Default returns the storefront assortment.
func Default() *Static {
	return NewStatic([]Product{
		{ID: "1", Name: "Нежность роз", Price: 4500, Category: "Розы", Description: "Пионовидные розы в крафтовой упаковке"},
		{ID: "2", Name: "Весенние тюльпаны", Price: 3200, Category: "Тюльпаны", Description: "25 разноцветных тюльпанов"},
		{ID: "3", Name: "Королевские пионы", Price: 7500, Category: "Пионы", Description: "Пышные розовые пионы"},
		{ID: "4", Name: "Полевой букет", Price: 2800, Category: "Авторские", Description: "Ромашки, васильки и злаки"},
		{ID: "5", Name: "Белые лилии", Price: 2100, Category: "Лилии", Description: "Элегантные белые лилии"},
		{ID: "6", Name: "Радужные тюльпаны", Price: 2400, Category: "Тюльпаны", Description: "Яркий весенний микс"},
	})
}

func (s *Static) Lookup(id string) (Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

func (s *Static) All() []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}
