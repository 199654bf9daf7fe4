//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/database"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/leads"
	"github.com/hugh/go-crm/pkg/config"
	"github.com/hugh/go-crm/pkg/util"
	"github.com/joho/godotenv"
)

func strp(s string) *string { return &s }

type sampleLead struct {
	company, contact, email, city, source, status, value, description string
}

var samples = []sampleLead{
	{"Acme Industries", "Jane Doe", "jane.doe@acme.example", "Pune", "Website", "New", "150000", "Warehouse automation"},
	{"Globex Ltd", "Hank Scorpio", "hank@globex.example", "Mumbai", "Referral", "Working", "₹2,50,000", "Office fit-out"},
	{"Initech", "Bill Lumbergh", "bill@initech.example", "Bengaluru", "Trade Show", "qualified", "90000", "Server room cooling"},
	{"Umbrella Corp", "Alice Abernathy", "alice@umbrella.example", "Delhi", "Cold Call", "Quoted", "500000", "Lab extension"},
	{"Stark Works", "Pepper Potts", "pepper@stark.example", "Chennai", "Email", "Follow-up", "", "Solar retrofit"},
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "admin1234"
	}

	ctx := context.Background()
	resp, err := authService.Register(ctx, auth.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Admin",
		OrgName:   "Default Organization",
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}

	session := auth.Session{
		UserID:         resp.User.ID,
		OrganizationID: resp.User.OrganizationID,
		Email:          resp.User.Email,
		Role:           models.RoleAdmin,
	}

	leadService := leads.NewService(db, logger)
	created := 0
	for _, s := range samples {
		p := leads.Payload{
			CompanyName:        strp(s.company),
			ContactName:        strp(s.contact),
			ContactEmail:       strp(s.email),
			City:               strp(s.city),
			EnquiryType:        strp(s.source),
			EnquiryStatus:      strp(s.status),
			ProjectDescription: strp(s.description),
		}
		if s.value != "" {
			p.EstimatedValue = &leads.Amount{Raw: s.value}
		}
		if _, err := leadService.Create(ctx, session, p); err != nil {
			log.Printf("skipping sample lead %s: %v", s.company, err)
			continue
		}
		created++
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", resp.User.Email)
	fmt.Printf("Sample leads: %d\n", created)
	fmt.Printf("Token: %s\n", resp.Token)
}
