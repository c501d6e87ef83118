package main // Entry point package

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cinema-booking/internal/bus"
	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/database"
	"github.com/iliyamo/cinema-booking/internal/gateway"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/reaper"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/router"
	"github.com/iliyamo/cinema-booking/internal/service"
	"github.com/iliyamo/cinema-booking/internal/ws"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it seat events stay node-local.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, seat events stay local to this node")
	}

	// Repositories
	holdRepo := repository.NewHoldRepo(db)
	catalogRepo := repository.NewCatalogRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)
	ticketRepo := repository.NewTicketRepo(db)

	// Event fan-out: hub for local subscribers, bus for cross-node routing.
	hub := ws.NewHub(cfg.BusQueueSize)
	eventBus := bus.New(hub, rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eventBus.Run(ctx)

	// Services
	holdTTL := time.Duration(cfg.HoldTTLMin) * time.Minute
	reservationSvc := service.NewReservationService(holdRepo, catalogRepo, eventBus, holdTTL)
	vnpay := gateway.New(gateway.Config{
		TMNCode:    cfg.VNPayTMNCode,
		HashSecret: cfg.VNPayHashSecret,
		PaymentURL: cfg.VNPayPaymentURL,
		ReturnURL:  cfg.VNPayReturnURL,
	})
	ticketSvc := service.NewTicketService(ticketRepo, holdRepo, catalogRepo, paymentRepo, eventBus, cfg.JWTSecret, cfg.RabbitURL)
	paymentSvc := service.NewPaymentService(holdRepo, catalogRepo, paymentRepo, vnpay, ticketSvc)

	// Background workers
	period := time.Duration(cfg.ReaperPeriodSec) * time.Second
	go reaper.New(holdRepo, paymentRepo, eventBus, period, 2*period).Run(ctx)
	if cfg.RabbitURL != "" {
		go func() {
			if err := queue.StartTicketsConsumer(cfg.RabbitURL); err != nil {
				log.Printf("tickets consumer stopped: %v", err)
			}
		}()
	}

	// HTTP surface
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(cfg.CORSOrigins, ","),
	}))

	router.RegisterRoutes(e)
	router.RegisterReservations(e, handler.NewReservationHandler(reservationSvc))
	router.RegisterPayments(e, handler.NewPaymentHandler(paymentSvc))
	router.RegisterTickets(e, handler.NewTicketHandler(ticketSvc))
	router.RegisterWS(e, ws.NewHandler(hub, reservationSvc, reservationSvc))

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
