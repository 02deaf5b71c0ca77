//go:build ignore

// ===========================================================================
// Script tạo seed data cho development/testing
// Chạy: go run scripts/seed/main.go
// ===========================================================================

package main

import (
	"fmt"
	"log"

	"chatboard/internal/config"
	"chatboard/internal/database"
	"chatboard/internal/models"
	"chatboard/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	fmt.Println("🌱 Bắt đầu seed data...")

	// Load config
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Không thể load config: %v", err)
	}

	// Khởi tạo logger
	zapLog, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Không thể tạo logger: %v", err)
	}

	// Kết nối database
	db, err := database.NewConnection(&cfg.Database, zapLog)
	if err != nil {
		log.Fatalf("Không thể kết nối database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Không thể migrate: %v", err)
	}

	fmt.Println("✅ Đã kết nối database")

	// =========================================================================
	// 1. Tạo Company
	// =========================================================================
	company := &models.Company{
		Name: "Demo Shop",
		Slug: "demo-shop",
		Settings: models.CompanySettings{
			Timezone: "America/Sao_Paulo",
			Language: "pt-BR",
		},
		IsActive: true,
	}

	var existingCompany models.Company
	if err := db.Where("slug = ?", company.Slug).First(&existingCompany).Error; err == nil {
		fmt.Println("⚠️  Company 'demo-shop' đã tồn tại, sử dụng ID hiện có")
		company = &existingCompany
	} else {
		if err := db.Create(company).Error; err != nil {
			log.Fatalf("Không thể tạo company: %v", err)
		}
		fmt.Printf("✅ Đã tạo Company: %s (ID: %s)\n", company.Name, company.ID)
	}

	// =========================================================================
	// 2. Tạo Users
	// =========================================================================
	users := []*models.User{
		{
			CompanyID: company.ID,
			Email:     "admin@demo.com",
			Name:      "Admin Demo",
			Role:      models.RoleOwner,
			IsActive:  true,
		},
		{
			CompanyID: company.ID,
			Email:     "agent1@demo.com",
			Name:      "Agent Um",
			Role:      models.RoleAgent,
			IsActive:  true,
		},
	}

	for _, user := range users {
		if err := user.SetPassword("Password123!"); err != nil {
			zapLog.Warn("Không thể set password", zap.Error(err))
		}

		var existing models.User
		if err := db.Where("company_id = ? AND email = ?", company.ID, user.Email).First(&existing).Error; err == nil {
			fmt.Printf("⚠️  User '%s' đã tồn tại\n", user.Email)
			continue
		}

		if err := db.Create(user).Error; err != nil {
			zapLog.Warn("Không thể tạo user", zap.String("email", user.Email), zap.Error(err))
		} else {
			fmt.Printf("✅ Đã tạo User: %s\n", user.Email)
		}
	}

	// =========================================================================
	// 3. Tạo Channel Instances (một waweb, một cloud)
	// =========================================================================
	webInstance := &models.ChannelInstance{
		CompanyID: company.ID,
		Kind:      models.ChannelWAWeb,
		Name:      "WhatsApp Web Demo",
		Phone:     "5511999990001",
		IsActive:  true,
		Credentials: models.InstanceCredentials{
			BridgeURL:   "http://localhost:3001",
			BridgeToken: "dev-bridge-token",
		},
	}
	cloudInstance := &models.ChannelInstance{
		CompanyID: company.ID,
		Kind:      models.ChannelCloud,
		Name:      "Cloud API Demo",
		Phone:     "5511999990002",
		IsActive:  true,
		Credentials: models.InstanceCredentials{
			AccessToken:   "dev-access-token",
			PhoneNumberID: "1234567890",
			AppSecret:     "dev-app-secret",
		},
	}
	for _, instance := range []*models.ChannelInstance{webInstance, cloudInstance} {
		var existing models.ChannelInstance
		if err := db.Where("company_id = ? AND name = ?", company.ID, instance.Name).First(&existing).Error; err == nil {
			fmt.Printf("⚠️  Instance '%s' đã tồn tại\n", instance.Name)
			*instance = existing
			continue
		}
		if err := db.Create(instance).Error; err != nil {
			zapLog.Warn("Không thể tạo instance", zap.String("name", instance.Name), zap.Error(err))
		} else {
			fmt.Printf("✅ Đã tạo Instance: %s (%s)\n", instance.Name, instance.Kind)
		}
	}

	// =========================================================================
	// 4. Tạo Board với entry room + room hỗ trợ
	// =========================================================================
	entryRoom := models.Room{ID: uuid.New(), Name: "Entrada", EntryPoint: true}
	supportRoom := models.Room{ID: uuid.New(), Name: "Suporte"}
	board := &models.Board{
		CompanyID:   company.ID,
		Name:        "Atendimento",
		EntryRoomID: entryRoom.ID,
		Rooms:       models.Rooms{entryRoom, supportRoom},
		Subscriptions: models.Subscriptions{
			{Kind: models.ChannelWAWeb, InstanceID: webInstance.ID},
			{Kind: models.ChannelCloud, InstanceID: cloudInstance.ID},
		},
	}

	var existingBoard models.Board
	if err := db.Where("company_id = ? AND name = ?", company.ID, board.Name).First(&existingBoard).Error; err == nil {
		fmt.Println("⚠️  Board 'Atendimento' đã tồn tại")
		board = &existingBoard
	} else if err := db.Create(board).Error; err != nil {
		zapLog.Warn("Không thể tạo board", zap.Error(err))
	} else {
		fmt.Printf("✅ Đã tạo Board: %s\n", board.Name)
	}

	// =========================================================================
	// 5. Tạo Bot chào mừng với flow mẫu
	// =========================================================================
	flow := models.FlowGraph{
		Nodes: []models.FlowNode{
			{ID: "n1", Type: models.NodeMessage, Value: "Olá! Como podemos ajudar?\n* suporte\n* vendas"},
			{ID: "n2", Type: models.NodeResponse, Value: "suporte"},
			{ID: "n3", Type: models.NodeMessage, Value: "Encaminhando para o suporte. Aguarde um momento.",
				Actions: []models.NodeActionSpec{
					{
						Kind: models.ActionRouteChat,
						RouteChat: &models.RouteChatSettings{
							BoardID: board.ID,
							RoomID:  &supportRoom.ID,
						},
					},
					{Kind: models.ActionEndConversation, EndConversation: &models.EndConversationSettings{CooldownMinutes: 60}},
				},
			},
			{ID: "n4", Type: models.NodeResponse, Value: "vendas"},
			{ID: "n5", Type: models.NodeMessage, Value: "Nosso catálogo: https://demo.shop/catalogo"},
		},
		Edges: []models.FlowEdge{
			{Source: "n1", Target: "n2"},
			{Source: "n2", Target: "n3"},
			{Source: "n1", Target: "n4"},
			{Source: "n4", Target: "n5"},
		},
	}

	bot := &models.Bot{
		CompanyID:      company.ID,
		Name:           "Bot de Boas-vindas",
		Trigger:        "oi;ola;bom dia",
		FuzzyThreshold: 0.25,
		ExpiryMinutes:  30,
		IdleMinutes:    10,
		Flow:           flow,
		Channels: models.ChannelBindings{
			{Kind: models.ChannelWAWeb, InstanceID: webInstance.ID},
			{Kind: models.ChannelCloud, InstanceID: cloudInstance.ID},
		},
	}

	var existingBot models.Bot
	if err := db.Where("company_id = ? AND name = ?", company.ID, bot.Name).First(&existingBot).Error; err == nil {
		fmt.Println("⚠️  Bot 'Bot de Boas-vindas' đã tồn tại")
	} else if err := db.Create(bot).Error; err != nil {
		zapLog.Warn("Không thể tạo bot", zap.Error(err))
	} else {
		fmt.Printf("✅ Đã tạo Bot: %s\n", bot.Name)
	}

	// =========================================================================
	// 6. Tạo Oven cho cloud instance
	// =========================================================================
	oven := &models.Oven{
		CompanyID:         company.ID,
		ChannelInstanceID: cloudInstance.ID,
		Name:              "Campanha Demo",
		BatchSize:         10,
		FrequencyMinutes:  60,
		Paused:            true,
		BlacklistTrigger:  "sair",
	}

	var existingOven models.Oven
	if err := db.Where("company_id = ? AND name = ?", company.ID, oven.Name).First(&existingOven).Error; err == nil {
		fmt.Println("⚠️  Oven 'Campanha Demo' đã tồn tại")
	} else if err := db.Create(oven).Error; err != nil {
		zapLog.Warn("Không thể tạo oven", zap.Error(err))
	} else {
		fmt.Printf("✅ Đã tạo Oven: %s\n", oven.Name)
	}

	fmt.Println("🌱 Seed hoàn tất")
}
