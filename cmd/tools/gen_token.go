// Command gen_token issues a signed identity token for local testing.
// Point CHAT_USER_ID at any user id and paste the output into the
// client's CHAT_TOKEN.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"chatwire/auth"

	"github.com/joho/godotenv"
)

func main() {
	userID := flag.String("user", "", "User id to bind the token to")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token validity")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	if *userID == "" {
		log.Fatal("-user is required")
	}

	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "chatwire"
	}

	token, err := auth.NewTokenService(secret, issuer, *ttl).Generate(*userID)
	if err != nil {
		log.Fatal("Token generation failed: ", err)
	}
	fmt.Println(token)
}
