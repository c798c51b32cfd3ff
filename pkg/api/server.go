package api

import (
	"github.com/commutercal/commutercal/pkg/api/routes"
	"github.com/commutercal/commutercal/pkg/calendar"
	"github.com/gofiber/fiber/v2"
)

func SetupServer(listen string, feed *calendar.Synthesizer) error {
	return CreateServer(feed).Listen(listen)
}

func CreateServer(feed *calendar.Synthesizer) *fiber.App {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	routes.UseSynthesizer(feed)

	webApp.Get("/healthz", routes.Healthz)
	webApp.Get("/version", routes.APIVersion)
	webApp.Get("/stops", routes.SearchStops)
	webApp.Get("/schedule.ics", routes.ScheduleFeed)

	return webApp
}
