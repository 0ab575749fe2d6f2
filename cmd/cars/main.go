package main

import (
	bookingsrepository "wheelaway/internal/bookings/repository"
	"wheelaway/internal/cars/handler"
	"wheelaway/internal/cars/repository"
	"wheelaway/internal/cars/service"
	"wheelaway/internal/cars/validator"
	"wheelaway/pkg/app"
	"wheelaway/pkg/config"
)

const ServiceName = "cars"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Cars service")
	carService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewCarHandler(carService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.CarService {
	carValidator := validator.NewCarValidator(cfg.Log)
	carRepo := repository.NewMongoCarRepository(cfg)
	carService := service.NewCarService(
		carRepo,
		bookingsrepository.NewMongoBookingRepository(cfg),
		carValidator,
		cfg,
	)

	cfg.Log.Info("Cars service initialized", "database", cfg.MongoDatabaseName)
	return carService
}
