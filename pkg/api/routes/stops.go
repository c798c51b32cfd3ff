package routes

import (
	"errors"

	"github.com/commutercal/commutercal/pkg/calendar"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
)

func SearchStops(c *fiber.Ctx) error {
	query := c.Query("query")
	forceRefresh := c.QueryBool("force_refresh", false)

	stops, err := feed.SearchStops(c.Context(), query, forceRefresh)

	if errors.Is(err, calendar.ErrValidation) {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Parameter query is required",
		})
	}
	if err != nil {
		c.SendStatus(fiber.StatusBadGateway)
		return c.JSON(fiber.Map{
			"error": "Stop directory is currently unavailable",
		})
	}

	stopsReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: []string{"basic"},
	}, stops)

	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sheriff could not reduce stops",
		})
	}

	return c.JSON(stopsReduced)
}
