package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sartorlabs/sartor/libs/auth"
)

// Signs a bearer token for poking the booking API locally:
//
//	go run ./tools/token-gen -sub cust-1 -email x@y -role CUSTOMER
func main() {
	var (
		sub    = flag.String("sub", getenv("TOKEN_SUB", ""), "subject (user id)")
		email  = flag.String("email", getenv("TOKEN_EMAIL", ""), "user email")
		role   = flag.String("role", getenv("TOKEN_ROLE", "CUSTOMER"), "CUSTOMER, STAFF or ADMIN")
		ttl    = flag.Duration("ttl", 24*time.Hour, "token lifetime")
		secret = flag.String("secret", getenv("JWT_SECRET", ""), "HS256 signing secret")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("JWT_SECRET is required")
	}
	if strings.TrimSpace(*sub) == "" {
		fatal("-sub is required")
	}
	switch *role {
	case "CUSTOMER", "STAFF", "ADMIN":
	default:
		fatal("-role must be CUSTOMER, STAFF or ADMIN")
	}

	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:   *sub,
		Email: *email,
		Role:  *role,
		Iat:   now.Unix(),
		Exp:   now.Add(*ttl).Unix(),
	}, *secret)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Println(token)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
