package main

import (
	carsrepository "wheelaway/internal/cars/repository"
	"wheelaway/internal/rides/handler"
	"wheelaway/internal/rides/repository"
	"wheelaway/internal/rides/service"
	"wheelaway/internal/rides/validator"
	"wheelaway/pkg/app"
	"wheelaway/pkg/config"
)

const ServiceName = "rides"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Rides service")
	rideService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewRideHandler(rideService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.RideService {
	rideService := service.NewRideService(
		repository.NewMongoRideRepository(cfg),
		carsrepository.NewMongoCarRepository(cfg),
		validator.NewRideValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Rides service initialized", "database", cfg.MongoDatabaseName)
	return rideService
}
