// tokengen выпускает access токен оператора или наблюдателя по JWT_SECRET из окружения.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/ignatzorin/earnings-ledger/internal/config"
	"github.com/ignatzorin/earnings-ledger/internal/dto"
	"github.com/ignatzorin/earnings-ledger/internal/service"
	"github.com/ignatzorin/earnings-ledger/internal/validation"
)

func main() {
	var (
		subject string
		role    string
	)
	flag.StringVar(&subject, "sub", "", "имя оператора в токене")
	flag.StringVar(&role, "role", service.RoleViewer, "роль: viewer или operator")
	flag.Parse()

	if err := validation.ValidateSubject(subject); err != nil {
		log.Fatalf("tokengen: -sub: %v", err)
	}
	if !service.ValidRole(role) {
		log.Fatalf("tokengen: неизвестная роль %q", role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("tokengen: ошибка загрузки конфигурации: %v", err)
	}

	token, expiresAt, err := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL).Issue(subject, role)
	if err != nil {
		log.Fatalf("tokengen: не удалось выпустить токен: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dto.TokenResponse{AccessToken: token, ExpiresAt: expiresAt}); err != nil {
		log.Fatalf("tokengen: %v", err)
	}
}
