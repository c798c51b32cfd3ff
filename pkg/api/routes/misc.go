package routes

import (
	"github.com/commutercal/commutercal/pkg/calendar"
	"github.com/gofiber/fiber/v2"
)

var feed *calendar.Synthesizer

// UseSynthesizer wires the shared synthesizer into the route handlers.
func UseSynthesizer(synthesizer *calendar.Synthesizer) {
	feed = synthesizer
}

func Healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok": true,
	})
}

func APIVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": "v0.1",
	})
}
