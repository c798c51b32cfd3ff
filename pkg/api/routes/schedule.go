package routes

import (
	"errors"
	"strconv"
	"time"

	"github.com/commutercal/commutercal/pkg/calendar"
	"github.com/commutercal/commutercal/pkg/util"
	"github.com/gofiber/fiber/v2"
)

func ScheduleFeed(c *fiber.Ctx) error {
	homeStop := c.Query("home_stop")
	if homeStop == "" {
		homeStop = util.GetEnvironmentVariable("COMMUTERCAL_DEFAULT_HOME_STOP", "")
	}

	workStop := c.Query("work_stop")
	if workStop == "" {
		workStop = util.GetEnvironmentVariable("COMMUTERCAL_DEFAULT_WORK_STOP", "")
	}

	days, err := strconv.Atoi(c.Query("days", "14"))
	if err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Parameter days should be an integer",
		})
	}

	events, err := feed.Generate(c.Context(), calendar.Request{
		HomeStop:     homeStop,
		WorkStop:     workStop,
		Days:         days,
		ForceRefresh: c.QueryBool("force_refresh", false),
	})

	if errors.Is(err, calendar.ErrValidation) {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-store")

	return c.SendString(calendar.Render(events, time.Now()))
}
