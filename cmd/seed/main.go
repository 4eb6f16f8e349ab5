// Command main fills the configured database with demo users, posts,
// comment threads and likes, and prints an access token per user.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"chorus/internal/config"
	"chorus/internal/database"
	"chorus/internal/middleware"
	"chorus/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	users := flag.Int("users", defaults.Users, "Number of users to create")
	admins := flag.Int("admins", defaults.Admins, "How many of the users are admins")
	posts := flag.Int("posts", defaults.PostsPerUser, "Posts per user")
	comments := flag.Int("comments", defaults.CommentsPerPost, "Comments per post")
	seedValue := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	clean := flag.Bool("clean", true, "Clean database before seeding")
	tokens := flag.Int("tokens", 3, "Print access tokens for this many users")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if config.IsProduction(cfg.Env) {
		log.Fatal("Refusing to seed a production database")
	}
	middleware.Logger = middleware.NewLogger(cfg.Env)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, *seedValue)
	if *clean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	opts := defaults
	opts.Users = *users
	opts.Admins = *admins
	opts.PostsPerUser = *posts
	opts.CommentsPerPost = *comments

	res, err := s.Run(opts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	verifier := middleware.NewTokenVerifier(cfg)
	for i, u := range res.Users {
		if i >= *tokens {
			break
		}
		tok, err := verifier.Issue(u.ID, u.Role, 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Printf("%-6s %-30s %s\n", u.Role, u.Email, tok)
	}
}
