package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/bloomstem/internal/catalog"
	"github.com/example/bloomstem/internal/middleware"
	"github.com/example/bloomstem/internal/services"
	"github.com/example/bloomstem/internal/utils"
)

// ProductHandler serves the read-only catalog and product reviews.
type ProductHandler struct {
	catalog catalog.Catalog
	reviews *services.ReviewService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(c catalog.Catalog, reviews *services.ReviewService) *ProductHandler {
	return &ProductHandler{catalog: c, reviews: reviews}
}

type createReviewRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Text   string `json:"text" validate:"max=2000"`
	Author string `json:"author" validate:"max=100"`
}

// ListProducts returns paginated products with optional filters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))
	category := strings.TrimSpace(c.Query("category"))

	var minPrice, maxPrice int64 = 0, -1
	if v, err := strconv.ParseInt(c.Query("min_price"), 10, 64); err == nil {
		minPrice = v
	}
	if v, err := strconv.ParseInt(c.Query("max_price"), 10, 64); err == nil {
		maxPrice = v
	}

	products := []catalog.Product{}
	for _, p := range h.catalog.All() {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.Description), search) {
			continue
		}
		if p.Price < minPrice || (maxPrice >= 0 && p.Price > maxPrice) {
			continue
		}
		products = append(products, p)
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       utils.Paginate(products, pg),
		"pagination": pg.Meta(len(products)),
	})
}

// GetProduct returns one product with its rating summary.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	product, ok := h.catalog.Lookup(c.Params("id"))
	if !ok {
		return services.ErrNotFound
	}

	reviews, err := h.reviews.List(c.UserContext(), product.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"product":      product,
			"rating":       services.AverageRating(reviews),
			"review_count": len(reviews),
		},
	})
}

// ListReviews returns a product's reviews, most recent first.
func (h *ProductHandler) ListReviews(c *fiber.Ctx) error {
	reviews, err := h.reviews.List(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       utils.Paginate(reviews, pg),
		"pagination": pg.Meta(len(reviews)),
	})
}

// CreateReview adds a review. A token's display name is used when no author is given.
func (h *ProductHandler) CreateReview(c *fiber.Ctx) error {
	var req createReviewRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	author := req.Author
	if p, ok := middleware.CurrentPrincipal(c); ok && strings.TrimSpace(author) == "" {
		author = p.Name
	}

	review, err := h.reviews.Add(c.UserContext(), c.Params("id"), req.Rating, req.Text, author)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": review})
}
