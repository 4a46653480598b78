package cmd

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/surprisebot/internal/agent"
	"github.com/nextlevelbuilder/surprisebot/internal/bus"
	"github.com/nextlevelbuilder/surprisebot/internal/config"
	"github.com/nextlevelbuilder/surprisebot/internal/cron"
	"github.com/nextlevelbuilder/surprisebot/internal/scheduler"
	"github.com/nextlevelbuilder/surprisebot/internal/sessions"
)

// makeCronJobHandler creates a cron.Handler that routes triggered jobs
// through the scheduler's cron lane, which applies the scheduler's
// per-session concurrency control to cron runs.
func makeCronJobHandler(sched *scheduler.Scheduler, msgBus *bus.MessageBus, cfg *config.Config) cron.Handler {
	return func(ctx context.Context, job cron.Job) (*cron.Result, error) {
		agentID := job.AgentID
		if agentID == "" {
			agentID = cfg.ResolveDefaultAgentID()
		}

		runID := fmt.Sprintf("cron:%s", job.ID)
		sessionKey := sessions.BuildCronSessionKey(agentID, job.ID, runID)
		channel := job.Payload.Channel
		if channel == "" {
			channel = "cron"
		}

		// Schedule through the cron lane — the scheduler handles agent
		// resolution and per-session concurrency.
		outCh := sched.Schedule(ctx, scheduler.LaneCron, agent.RunRequest{
			SessionKey: sessionKey,
			Message:    job.Payload.Message,
			Channel:    channel,
			ChatID:     job.Payload.To,
			UserID:     job.UserID,
			RunID:      runID,
			Stream:     false,
			TraceName:  fmt.Sprintf("Cron [%s] - %s", job.Name, agentID),
			TraceTags:  []string{"cron"},
		})

		outcome := <-outCh
		if outcome.Err != nil {
			return nil, outcome.Err
		}

		result := outcome.Result

		if job.Payload.Deliver && job.Payload.Channel != "" && job.Payload.To != "" {
			msgBus.PublishOutbound(bus.OutboundMessage{
				Channel: job.Payload.Channel,
				ChatID:  job.Payload.To,
				Content: result.Content,
			})
		}

		cronResult := &cron.Result{Content: result.Content}
		if result.Usage != nil {
			cronResult.InputTokens = result.Usage.PromptTokens
			cronResult.OutputTokens = result.Usage.CompletionTokens
		}

		return cronResult, nil
	}
}
