package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"wmclean/pkg/auth"
	"wmclean/pkg/config"
)

func main() {
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Println("usage: go run ./cmd/issue_token [-ttl 24h] <subject>")
		os.Exit(2)
	}
	env, err := config.Load()
	if err != nil {
		log.Fatalf("load env: %v", err)
	}
	tok, err := auth.Issue([]byte(env.JWTSecret), flag.Arg(0), *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok)
}
