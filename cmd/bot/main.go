package main

import (
	"fmt"
	"log"

	"github.com/eliseohh/vendobot/internal/bot"
	"github.com/eliseohh/vendobot/internal/catalog"
	"github.com/eliseohh/vendobot/internal/config"
	"github.com/eliseohh/vendobot/internal/ledger"
	"github.com/eliseohh/vendobot/internal/store"
)

func main() {
	fmt.Println("VendoBot: Virtual Vending Machine")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if cfg.Token == "" {
		log.Fatal("No VENDO_TOKEN found. Bot will not start.")
	}

	// 1. Load the root document (empty on first run)
	doc, err := store.Load(cfg.DataFile)
	if err != nil {
		log.Fatalf("Cannot load %s: %v", cfg.DataFile, err)
	}
	svc := catalog.NewService(doc, cfg.DataFile, cfg.OperatorID)

	// 2. Open the purchase ledger
	db, err := ledger.Open(cfg.LedgerFile)
	if err != nil {
		log.Fatalf("Ledger init failed: %v", err)
	}
	defer db.Close()

	// 3. Start Bot
	b, err := bot.New(bot.Config{Token: cfg.Token, OperatorID: cfg.OperatorID}, svc, db)
	if err != nil {
		log.Fatalf("Bot init failed: %v", err)
	}

	// 4. Heartbeat loop (every 10 min by default)
	stop := make(chan struct{})
	defer close(stop)
	go b.RunHeartbeat(cfg.HeartbeatEvery, stop)

	fmt.Println("🤖 Bot Online. Listening...")
	b.Start()
}
