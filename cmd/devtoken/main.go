// devtoken は API に渡すアクセストークンを発行する（認証サービスが無いローカル用）。
//
//	go run ./cmd/devtoken -user 1
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/logging"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/middleware"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	userID := flag.Int64("user", 0, "user id (sub claim)")
	role := flag.String("role", "USER", "role claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to JWT_SECRET)")
	flag.Parse()

	log := logging.New("dev", "info")

	if *userID <= 0 {
		log.Fatal().Msg("-user must be a positive id")
	}
	if *secret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	token, exp, err := middleware.IssueToken(*secret, *userID, *role, *ttl, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("issue token")
	}

	log.Info().Int64("user_id", *userID).Time("expires_at", exp).Msg("token issued")
	fmt.Println(token)
}
