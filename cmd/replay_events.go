package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/issue-tracker/internal/kafka"
	"github.com/psds-microservice/issue-tracker/internal/model"
	"github.com/psds-microservice/issue-tracker/internal/repository"
	"github.com/psds-microservice/issue-tracker/internal/service"
)

var replayEventsCmd = &cobra.Command{
	Use:   "replay-events",
	Short: "Publish an issue.created event for every stored issue so consumers can rebuild their state",
	RunE:  runReplayEvents,
}

var replayProject string

func init() {
	replayEventsCmd.Flags().StringVar(&replayProject, "project", "", "Replay only this project")
}

func runReplayEvents(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.EventsEnabled() {
		return errors.New("replay-events: KAFKA_BROKERS and KAFKA_TOPIC_ISSUE must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	store, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	criteria := repository.Criteria{}
	if replayProject != "" {
		criteria[model.FieldProject] = replayProject
	}
	issues, err := store.Find(ctx, criteria)
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}
	log.Info("replay-events: found issues", "count", len(issues), "project", replayProject)

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicIssue, log)
	defer producer.Close()
	for i := range issues {
		producer.ProduceIssueEvent(ctx, kafka.EventIssueCreated, service.IssueEventPayload(&issues[i]))
		if (i+1)%50 == 0 || i == len(issues)-1 {
			log.Info("replay-events: progress", "sent", i+1, "total", len(issues))
		}
	}
	log.Info("replay-events: done", "sent", len(issues), "topic", cfg.KafkaTopicIssue)
	return nil
}
