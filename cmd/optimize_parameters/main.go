package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	_ "time/tzdata"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-srs/internal/app"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-srs/internal/services/scheduler"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil || id == uuid.Nil {
			return nil, fmt.Errorf("invalid id %q", s)
		}
		out = append(out, id)
	}
	return out, nil
}

func main() {
	var users, topics idList
	var all, dryRun bool
	var minReviews, limit int
	flag.Var(&users, "user", "user_id to optimize (repeatable)")
	flag.Var(&topics, "topic", "restrict fitting to topic_id (repeatable; one run per user and topic)")
	flag.BoolVar(&all, "all", false, "optimize every user with at least -min-reviews review logs")
	flag.IntVar(&minReviews, "min-reviews", 0, "minimum review logs per scope (0 uses OPTIMIZE_MIN_REVIEWS)")
	flag.IntVar(&limit, "limit", 0, "limit number of users processed")
	flag.BoolVar(&dryRun, "dry-run", false, "print planned runs without fitting")
	flag.Parse()

	userIDs, err := parseIDs(users)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	topicIDs, err := parseIDs(topics)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	if len(userIDs) == 0 && !all {
		fmt.Println("pass -user at least once, or -all")
		os.Exit(2)
	}

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if all {
		threshold := minReviews
		if threshold <= 0 {
			threshold = application.Cfg.Optimize.MinReviews
		}
		found, err := application.Repos.ReviewLog.UsersWithReviews(dbctx.Context{Ctx: ctx}, int64(threshold))
		if err != nil {
			fmt.Printf("list users: %v\n", err)
			os.Exit(1)
		}
		userIDs = append(userIDs, found...)
	}
	if limit > 0 && len(userIDs) > limit {
		userIDs = userIDs[:limit]
	}

	scopes := []*uuid.UUID{nil}
	if len(topicIDs) > 0 {
		scopes = scopes[:0]
		for i := range topicIDs {
			scopes = append(scopes, &topicIDs[i])
		}
	}

	optimized, skipped, failed := 0, 0, 0
	for _, userID := range userIDs {
		for _, topicID := range scopes {
			scope := "user"
			if topicID != nil {
				scope = "topic=" + topicID.String()
			}
			if dryRun {
				fmt.Printf("would optimize user=%s %s\n", userID, scope)
				continue
			}
			res, err := application.Services.Scheduler.OptimizeParameters(ctx, scheduler.OptimizeInput{
				UserID:     userID,
				TopicID:    topicID,
				MinReviews: minReviews,
			})
			if err != nil {
				failed++
				fmt.Printf("user=%s %s error: %v\n", userID, scope, err)
				if ctx.Err() != nil {
					os.Exit(1)
				}
				continue
			}
			switch res.Status {
			case scheduler.OptimizeStatusOptimized:
				optimized++
				fmt.Printf("user=%s %s optimized reviews=%d loss=%.4f->%.4f\n", userID, scope, res.ReviewCount, res.InitialLoss, res.Loss)
			default:
				skipped++
				fmt.Printf("user=%s %s skipped reason=%s reviews=%d min=%d\n", userID, scope, res.Reason, res.ReviewCount, res.MinReviews)
			}
		}
	}
	fmt.Printf("done optimized=%d skipped=%d failed=%d\n", optimized, skipped, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
