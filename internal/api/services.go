package api

import (
	"github.com/mycellarapp/cellar-server/internal/service"
)

// Services groups the business logic services used by the API server.
type Services struct {
	Accounts    *service.AccountService
	Cellars     *service.CellarService
	Wines       *service.WineService
	Experiences *service.ExperienceService
	Transfer    *service.TransferService
	Pairing     *service.PairingService
	Search      *service.SearchService
}
