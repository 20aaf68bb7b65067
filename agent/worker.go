package agent

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Timwood0x10/StyleAgent/logging"
	"github.com/Timwood0x10/StyleAgent/protocol"
)

// defaultPoll bounds each mailbox wait so a stopped worker exits
// within one poll interval.
const defaultPoll = time.Second

// Worker serves one category. It runs as its own goroutine, polling
// its mailbox with a bounded timeout and checking a running flag
// between polls; stopping is cooperative and never interrupts an
// in-flight poll or completion call.
type Worker struct {
	id       string
	category string
	rt       *Runtime
	sender   *protocol.Sender
	receiver *protocol.Receiver
	system   string
	logger   *logging.Logger

	// Poll overrides the mailbox wait per iteration. Zero means the
	// default of one second.
	Poll time.Duration

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewWorker creates the worker serving the category.
func NewWorker(rt *Runtime, category string) *Worker {
	id := AgentForCategory(category)
	sender := protocol.NewSender(rt.Fabric, rt.Budgeter, id, rt.Logger)
	return &Worker{
		id:       id,
		category: category,
		rt:       rt,
		sender:   sender,
		receiver: protocol.NewReceiver(rt.Fabric, sender, id, rt.Logger),
		system:   SystemPromptFor(category),
		logger:   rt.Logger.WithComponent(id),
	}
}

// ID returns the worker's mailbox identity.
func (w *Worker) ID() string {
	return w.id
}

// Start launches the worker loop. Starting a running worker is a
// no-op.
func (w *Worker) Start(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info("started", nil)
}

// Stop clears the running flag and waits for the loop to finish its
// current iteration. A task envelope already in the mailbox is not
// recalled; it stays queued for a future start.
func (w *Worker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	w.wg.Wait()
	w.logger.Info("stopped", nil)
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	poll := w.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	for w.running.Load() {
		if ctx.Err() != nil {
			return
		}
		env, ok := w.receiver.WaitForTask(poll)
		if !ok {
			continue
		}
		w.handle(ctx, env)
	}
}

func (w *Worker) handle(ctx context.Context, env *protocol.Envelope) {
	w.receiver.MaybeAck(env)
	w.logger.Info("task_received", map[string]interface{}{
		"task":     env.TaskID,
		"category": env.PayloadString(protocol.KeyCategory),
	})

	if env.TaskID != "" && !w.rt.Registry.Claim(ctx, env.TaskID, w.id) {
		w.logger.Debug("claim_refused", map[string]interface{}{"task": env.TaskID})
	}

	w.sender.SendProgress(env.SenderID, env.TaskID, env.SessionID, 0.1, "Starting")

	profile := ProfileFromUserInfo(env.PayloadMap("user_info"))
	compact := env.PayloadString(protocol.KeyCompactInstruction)
	history := w.recallHistory(ctx, profile)

	w.sender.SendProgress(env.SenderID, env.TaskID, env.SessionID, 0.5, "Recommending")

	prompt := recommendPrompt(w.category, profile, compact, history)
	response, err := w.rt.InvokeGuarded(ctx, "worker_"+w.id, prompt, w.system)
	if err != nil {
		w.logger.Error("task_failed", map[string]interface{}{
			"task":  env.TaskID,
			"error": err.Error(),
		})
		w.sender.SendResult(env.SenderID, env.TaskID, env.SessionID, map[string]any{
			protocol.KeyError: err.Error(),
		}, protocol.StatusFailed)
		return
	}

	rec := parseRecommendation(response, w.category)

	w.sender.SendProgress(env.SenderID, env.TaskID, env.SessionID, 0.9, "Completed")
	w.sender.SendResult(env.SenderID, env.TaskID, env.SessionID, rec.ToPayload(), protocol.StatusSuccess)
	w.logger.Info("task_completed", map[string]interface{}{"task": env.TaskID})
}

// recallHistory retrieves similar past recommendations for this
// category as reference lines. Best-effort; an empty string means no
// usable history.
func (w *Worker) recallHistory(ctx context.Context, profile *UserProfile) string {
	query := "Recommend " + w.category + " for user who is " + profile.Gender +
		", occupation " + profile.Occupation +
		", mood " + profile.Mood +
		", season " + profile.Season +
		", occasion " + profile.Occasion
	similar, err := w.rt.Store.SearchSimilar(ctx, query, 3)
	if err != nil {
		w.logger.Debug("history_lookup_failed", map[string]interface{}{"error": err.Error()})
		return ""
	}
	var lines []string
	for _, hit := range similar {
		if hit.Content != "" {
			lines = append(lines, "- "+hit.Content)
		}
	}
	return strings.Join(lines, "\n")
}

// parseRecommendation decodes a completion into a recommendation,
// degrading to the placeholder when the JSON cannot be sliced out.
func parseRecommendation(response, category string) *OutfitRecommendation {
	data, ok := extractObject(response)
	if !ok {
		return PlaceholderRecommendation(category)
	}
	rec := RecommendationFromPayload(data)
	if rec.Category == "" {
		rec.Category = category
	}
	return rec
}

// StartWorkers creates and starts one worker per category.
func StartWorkers(ctx context.Context, rt *Runtime) []*Worker {
	workers := make([]*Worker, 0, len(Categories))
	for _, category := range Categories {
		w := NewWorker(rt, category)
		w.Start(ctx)
		workers = append(workers, w)
	}
	return workers
}

// StopWorkers stops every worker and waits for their loops to exit.
func StopWorkers(workers []*Worker) {
	for _, w := range workers {
		w.Stop()
	}
}
