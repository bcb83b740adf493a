package server

import (
	"errors"
	"strconv"
	"strings"

	"rosegold/market-service/internal/models"
	"rosegold/market-service/internal/service"
	"rosegold/market-service/internal/storage"

	"github.com/gofiber/fiber/v2"
)

const maxItemImages = 3

func (s *Server) handleAddItem(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	item := models.Item{
		AccountID:   claims.AccountID,
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		Zipcode:     c.FormValue("zipcode"),
		IsAvailable: true,
	}
	if item.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fail("missing item name"))
	}

	categories, err := parseCategories(c.FormValue("categories"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid categories"))
	}
	item.Categories = categories

	paths, err := s.saveItemImages(c, claims.Username, item.Name)
	if err != nil {
		if errors.Is(err, storage.ErrNotJPEG) {
			return c.Status(fiber.StatusBadRequest).JSON(fail(err.Error()))
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	assignImages(&item, paths)

	if err := s.items.PostItem(c.Context(), &item); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusCreated).JSON(ok(item))
}

func (s *Server) handleDeleteItems(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	var body struct {
		DeleteTheseIDs []int64 `json:"deleteTheseIds" validate:"required,min=1"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}
	if err := s.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fail(err.Error()))
	}

	count, err := s.items.DeleteItems(c.Context(), claims.AccountID, body.DeleteTheseIDs)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok(fiber.Map{"deleted": count}))
}

func (s *Server) handleDeleteItem(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	itemID, err := queryID(c, "itemId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid itemId"))
	}

	count, err := s.items.DeleteItems(c.Context(), claims.AccountID, []int64{itemID})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fail("problem occurred when deleting"))
	}

	if itemName := c.Query("itemName"); itemName != "" {
		if err := s.images.DeleteItemImages(claims.Username, itemName); err != nil {
			s.logger.WithError(err).Warn("Failed to remove deleted item's images")
		}
	}

	return c.JSON(ok(count > 0))
}

func (s *Server) handleItemDetails(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	itemID, err := queryID(c, "itemId")
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	item, err := s.items.GetItem(c.Context(), itemID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if item.AccountID != claims.AccountID {
		return c.SendStatus(fiber.StatusForbidden)
	}

	return c.JSON(ok(item))
}

func (s *Server) handleEditItem(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	itemID, err := strconv.ParseInt(c.FormValue("itemId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid itemId"))
	}

	item := models.Item{
		ID:          itemID,
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		Zipcode:     c.FormValue("zipcode"),
		IsAvailable: c.FormValue("isAvailable") != "false",
	}

	if raw := c.FormValue("categories"); raw != "" {
		categories, err := parseCategories(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fail("invalid categories"))
		}
		item.Categories = categories
	}

	paths, err := s.saveItemImages(c, claims.Username, item.Name)
	if err != nil {
		if errors.Is(err, storage.ErrNotJPEG) {
			return c.Status(fiber.StatusBadRequest).JSON(fail(err.Error()))
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	assignImages(&item, paths)

	if err := s.items.EditItem(c.Context(), claims.AccountID, &item); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return c.SendStatus(fiber.StatusNotFound)
		case errors.Is(err, service.ErrNotOwner):
			return c.SendStatus(fiber.StatusForbidden)
		default:
			return c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	return c.JSON(ok(item))
}

func (s *Server) handleEditItemCategories(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	var body struct {
		ItemID     int64   `json:"itemId" validate:"required"`
		Categories []int64 `json:"categories" validate:"required"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}
	if err := s.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fail(err.Error()))
	}

	if err := s.items.EditCategories(c.Context(), claims.AccountID, body.ItemID, body.Categories); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return c.SendStatus(fiber.StatusNotFound)
		case errors.Is(err, service.ErrNotOwner):
			return c.SendStatus(fiber.StatusForbidden)
		default:
			return c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	return c.JSON(ok(true))
}

func (s *Server) handleMarkPickedUp(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	var body struct {
		ItemID int64 `json:"itemId" validate:"required"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}

	if err := s.items.MarkPickedUp(c.Context(), claims.AccountID, body.ItemID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return c.SendStatus(fiber.StatusNotFound)
		case errors.Is(err, service.ErrNotOwner):
			return c.SendStatus(fiber.StatusForbidden)
		default:
			return c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	return c.JSON(ok(true))
}

// saveItemImages stores up to maxItemImages uploaded files named
// image1..image3 and returns their stored paths in order.
func (s *Server) saveItemImages(c *fiber.Ctx, username, itemName string) ([]string, error) {
	var paths []string
	for i := 1; i <= maxItemImages; i++ {
		data, err := formFileBytes(c, "image"+strconv.Itoa(i))
		if err != nil {
			continue
		}
		path, err := s.images.SaveItemImage(username, itemName, data)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func assignImages(item *models.Item, paths []string) {
	slots := []*string{&item.Image1, &item.Image2, &item.Image3}
	for i, path := range paths {
		if i >= len(slots) {
			break
		}
		*slots[i] = path
	}
}

func parseCategories(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}

	var categories []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		categories = append(categories, id)
	}
	return categories, nil
}
