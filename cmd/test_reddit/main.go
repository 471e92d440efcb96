package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/dataflows"
)

// Smoke test for the Reddit adapter against the live API.
func main() {
	subreddit := flag.String("subreddit", "startups", "subreddit to read")
	sort := flag.String("sort", "hot", "listing sort")
	limit := flag.Int("limit", 3, "posts to fetch")
	flag.Parse()

	ctx := context.Background()
	cfg := config.DefaultConfig()
	redditClient := dataflows.NewRedditClient(cfg)

	fmt.Printf("=== Test 1: r/%s exists ===\n", *subreddit)
	snapshot := redditClient.CheckExists(ctx, *subreddit)
	if !snapshot.Exists {
		log.Fatalf("r/%s not available: %s", *subreddit, snapshot.Error)
	}
	fmt.Printf("%s, %d subscribers\n", snapshot.Title, snapshot.SubscriberCount)

	fmt.Printf("\n=== Test 2: %d %s posts with comments ===\n", *limit, *sort)
	posts, err := redditClient.FetchPosts(ctx, models.FetchParams{
		Subreddit:    *subreddit,
		Limit:        *limit,
		Sort:         *sort,
		CommentLimit: 3,
	})
	if err != nil {
		log.Fatalf("Error fetching posts: %v", err)
	}
	for i, post := range posts {
		fmt.Printf("%d. %s (Score: %d, %d comments)\n", i+1, post.Title, post.Score, post.CommentCount)
		for _, c := range post.Comments {
			fmt.Printf("   - u/%s [%d]: %.80s\n", c.Author, c.Score, c.Body)
		}
	}

	fmt.Println("\nReddit adapter test completed!")
}
