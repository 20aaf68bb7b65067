package agent

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Timwood0x10/StyleAgent/logging"
	"github.com/Timwood0x10/StyleAgent/protocol"
	"github.com/Timwood0x10/StyleAgent/registry"
	"github.com/Timwood0x10/StyleAgent/storage"
)

// ProgressReport is the latest progress seen from one worker.
// Updates are last-write-wins per sender.
type ProgressReport struct {
	Fraction float64
	Message  string
}

// Leader parses a user request, fans tasks out to the category
// workers and fans their replies back in.
type Leader struct {
	rt        *Runtime
	sender    *protocol.Sender
	receiver  *protocol.Receiver
	validator *Validator
	logger    *logging.Logger

	mu       sync.Mutex
	progress map[string]ProgressReport
}

// NewLeader creates a leader on the runtime.
func NewLeader(rt *Runtime) *Leader {
	logger := rt.Logger.WithComponent("leader")
	sender := protocol.NewSender(rt.Fabric, rt.Budgeter, LeaderID, rt.Logger)
	return &Leader{
		rt:        rt,
		sender:    sender,
		receiver:  protocol.NewReceiver(rt.Fabric, sender, LeaderID, rt.Logger),
		validator: NewValidator(rt.ValidationLevel),
		logger:    logger,
		progress:  make(map[string]ProgressReport),
	}
}

// Process runs the full workflow for one user request.
func (l *Leader) Process(ctx context.Context, userInput string) (*OutfitResult, error) {
	sessionID := uuid.NewString()
	logger := l.logger.WithSessionID(sessionID)
	logger.Info("processing request")

	profile := l.ParseProfile(ctx, userInput)
	l.EnrichContext(ctx, profile)

	if err := l.rt.Store.SaveSession(ctx, storage.SessionDocument{
		ID:        sessionID,
		Profile:   profile.UserInfo(),
		Request:   userInput,
		CreatedAt: time.Now(),
	}); err != nil {
		logger.Warn("session_save_failed", map[string]interface{}{"error": err.Error()})
	}

	tasks := l.CreateTasks(ctx, profile, sessionID)
	l.Dispatch(tasks, profile)
	results, missing := l.Collect(ctx, tasks, l.rt.CollectTimeout)

	final := l.Aggregate(ctx, profile, results, sessionID)
	final.Missing = missing
	if err := l.rt.Store.CompleteSession(ctx, sessionID); err != nil {
		logger.Warn("session_complete_failed", map[string]interface{}{"error": err.Error()})
	}
	return final, nil
}

// ParseProfile extracts a user profile from free text. An unavailable
// completion service yields the neutral default profile; a completion
// that cannot be parsed falls back to keyword extraction.
func (l *Leader) ParseProfile(ctx context.Context, userInput string) *UserProfile {
	response, err := l.rt.InvokeGuarded(ctx, "leader_parse_profile", profilePrompt(userInput), systemPrompt)
	if err != nil {
		l.logger.Warn("profile_parse_unavailable", map[string]interface{}{"error": err.Error()})
		return DefaultProfile()
	}

	data, ok := extractObject(response)
	if !ok {
		l.logger.Warn("profile_parse_fallback", nil)
		return fallbackParse(userInput)
	}

	profile := ProfileFromUserInfo(data)
	if v, ok := data["style_preference"].(string); ok {
		profile.StylePreference = v
	}
	return profile
}

var (
	nameGenderRe = regexp.MustCompile(`(?i)(\w+),?\s+(male|female)`)
	ageRe        = regexp.MustCompile(`(?i)(\d+)\s*(?:years?\s*old|yo)`)
)

// keyword tables for the fallback parser.
var (
	fallbackOccupations = []string{"chef", "doctor", "teacher", "programmer", "engineer", "designer", "student"}
	fallbackHobbies     = []string{"travel", "sports", "music", "reading", "gaming", "food"}
)

// fallbackParse extracts what it can from the raw text with keyword
// matching when the completion-backed parse fails.
func fallbackParse(userInput string) *UserProfile {
	profile := DefaultProfile()
	lower := strings.ToLower(userInput)

	if m := nameGenderRe.FindStringSubmatch(userInput); m != nil {
		profile.Name = m[1]
		profile.Gender = strings.ToLower(m[2])
	}
	if m := ageRe.FindStringSubmatch(userInput); m != nil {
		if age := parseInt(m[1]); age > 0 {
			profile.Age = age
		}
	}
	if strings.Contains(lower, "depressed") {
		profile.Mood = "depressed"
	} else if strings.Contains(lower, "happy") {
		profile.Mood = "happy"
	}
	for _, occ := range fallbackOccupations {
		if strings.Contains(lower, occ) {
			profile.Occupation = occ
			break
		}
	}
	for _, hobby := range fallbackHobbies {
		if strings.Contains(lower, hobby) {
			profile.Hobbies = append(profile.Hobbies, hobby)
		}
	}
	return profile
}

func parseInt(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// EnrichContext loads similar past recommendations into the profile.
// Best-effort: lookup failures are logged and the profile is used as
// parsed.
func (l *Leader) EnrichContext(ctx context.Context, profile *UserProfile) {
	if profile.Name == "" || profile.Name == "User" {
		return
	}
	query := "user " + profile.Name + " " + profile.Gender + " " + profile.Occupation
	similar, err := l.rt.Store.SearchSimilar(ctx, query, 3)
	if err != nil {
		l.logger.Debug("context_lookup_failed", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, hit := range similar {
		if hit.Content != "" {
			profile.PreviousRecommendations = append(profile.PreviousRecommendations, hit.Content)
		}
	}
}

// CreateTasks decomposes the request into per-category tasks and
// registers each with the task registry. The completion service
// decides which categories matter; on failure every category is used.
func (l *Leader) CreateTasks(ctx context.Context, profile *UserProfile, sessionID string) []Task {
	categories := l.decomposeCategories(ctx, profile)
	if len(categories) == 0 {
		categories = Categories
		l.logger.Info("using default categories")
	}

	tasks := make([]Task, 0, len(categories))
	for _, category := range categories {
		desc := categoryDescriptions[category]
		task := Task{
			ID:          uuid.NewString(),
			SessionID:   sessionID,
			Category:    category,
			AgentID:     AgentForCategory(category),
			Description: desc,
			Instruction: "Please recommend " + desc + " for " + profile.Name + ", considering their mood is " + profile.Mood,
		}
		if err := l.rt.Registry.Register(ctx, registry.TaskRecord{
			ID:          task.ID,
			SessionID:   sessionID,
			Title:       category + " recommendation",
			Category:    category,
			Instruction: task.Instruction,
		}); err != nil {
			l.logger.Warn("task_register_failed", map[string]interface{}{
				"task":  task.ID,
				"error": err.Error(),
			})
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// decomposeCategories asks the completion service which categories to
// recommend; unknown categories are dropped.
func (l *Leader) decomposeCategories(ctx context.Context, profile *UserProfile) []string {
	response, err := l.rt.InvokeGuarded(ctx, "leader_decompose", categoriesPrompt(profile), systemPrompt)
	if err != nil {
		l.logger.Warn("decompose_unavailable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	raw, ok := extractStrings(response)
	if !ok {
		return nil
	}
	var categories []string
	for _, c := range raw {
		if ValidCategory(c) {
			categories = append(categories, c)
		}
	}
	return categories
}

// Dispatch sends each task to its worker. Tasks are independent;
// dispatch order carries no delivery or execution ordering guarantee.
func (l *Leader) Dispatch(tasks []Task, profile *UserProfile) {
	for _, task := range tasks {
		payload := map[string]any{
			protocol.KeyCategory:    task.Category,
			"description":           task.Description,
			"user_info":             profile.UserInfo(),
			protocol.KeyInstruction: task.Instruction,
		}
		l.sender.SendTask(task.AgentID, task.ID, task.SessionID, payload, "")
		l.logger.Info("dispatched", map[string]interface{}{
			"task":  task.ID,
			"agent": task.AgentID,
		})
	}
}

// Collect drains the leader's mailbox until every dispatched task's
// worker has produced a terminal reply or the deadline elapses.
// Demultiplexing by method: acks are logged only; progress is a
// last-write-wins record per sender; a failed result is dead-lettered
// and still counted as received so the loop keeps moving instead of
// waiting out the deadline for a known-failed worker. Workers that
// never reply are returned as missing; retrying them is the caller's
// decision through the registry, never automatic here.
func (l *Leader) Collect(ctx context.Context, tasks []Task, timeout time.Duration) (map[string]*OutfitRecommendation, []string) {
	results := make(map[string]*OutfitRecommendation)
	received := make(map[string]bool)
	expected := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		expected[task.AgentID] = true
	}

	deadline := time.Now().Add(timeout)
	for len(received) < len(expected) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		poll := remaining
		if poll > 200*time.Millisecond {
			poll = 200 * time.Millisecond
		}
		env, ok := l.receiver.Receive(poll)
		if !ok {
			continue
		}

		switch env.Method {
		case protocol.MethodAck:
			l.logger.Debug("ack", map[string]interface{}{
				"sender": env.SenderID,
				"of":     env.PayloadString(protocol.KeyAckOf),
			})

		case protocol.MethodProgress:
			l.recordProgress(env.SenderID, env.PayloadFloat(protocol.KeyProgress), env.PayloadString(protocol.KeyMessage))

		case protocol.MethodResult:
			if !expected[env.SenderID] {
				// A reply from outside this dispatch round (a stale
				// worker, an earlier session) must not count toward
				// completion.
				l.logger.Warn("unexpected_result_dropped", map[string]interface{}{
					"sender": env.SenderID,
					"task":   env.TaskID,
				})
				continue
			}
			l.handleResult(ctx, env, results, received)
		}
	}

	var missing []string
	for agentID := range expected {
		if !received[agentID] {
			missing = append(missing, agentID)
		}
	}
	sort.Strings(missing)
	if len(missing) > 0 {
		l.logger.Warn("missing_results", map[string]interface{}{
			"agents": strings.Join(missing, ","),
		})
	}
	return results, missing
}

func (l *Leader) handleResult(ctx context.Context, env *protocol.Envelope, results map[string]*OutfitRecommendation, received map[string]bool) {
	resultMap := env.PayloadMap(protocol.KeyResult)
	status := env.PayloadString(protocol.KeyStatus)

	if status == protocol.StatusFailed {
		errText := "unknown error"
		if v, ok := resultMap[protocol.KeyError].(string); ok && v != "" {
			errText = v
		}
		l.rt.Fabric.ToDeadLetter(env.SenderID, env, errText)
		received[env.SenderID] = true
		if env.TaskID != "" {
			if err := l.rt.Registry.Fail(ctx, env.TaskID, errText); err != nil {
				l.logger.Debug("registry_fail_skipped", map[string]interface{}{"error": err.Error()})
			}
		}
		return
	}

	rec := RecommendationFromPayload(resultMap)
	if rec.Category == "" {
		rec.Category = "unknown"
	}
	results[rec.Category] = rec
	received[env.SenderID] = true
	if env.TaskID != "" {
		if err := l.rt.Registry.Complete(ctx, env.TaskID, resultMap); err != nil {
			l.logger.Debug("registry_complete_skipped", map[string]interface{}{"error": err.Error()})
		}
	}
	l.logger.Info("result_received", map[string]interface{}{
		"category": rec.Category,
		"agent":    env.SenderID,
	})
}

func (l *Leader) recordProgress(senderID string, fraction float64, message string) {
	l.mu.Lock()
	l.progress[senderID] = ProgressReport{Fraction: fraction, Message: message}
	l.mu.Unlock()
	l.logger.Debug("progress", map[string]interface{}{
		"agent":    senderID,
		"fraction": fraction,
		"message":  message,
	})
}

// Progress returns a snapshot of the latest per-worker progress.
func (l *Leader) Progress() map[string]ProgressReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]ProgressReport, len(l.progress))
	for k, v := range l.progress {
		out[k] = v
	}
	return out
}

// Aggregate validates the per-category results and synthesizes an
// overall style summary with one more guarded completion call. A
// failed synthesis degrades to the per-category results with an empty
// summary rather than failing the pipeline.
func (l *Leader) Aggregate(ctx context.Context, profile *UserProfile, results map[string]*OutfitRecommendation, sessionID string) *OutfitResult {
	validated := make(map[string]*OutfitRecommendation, len(results))
	for category, rec := range results {
		payload := rec.ToPayload()
		vr := l.validator.Validate(payload, category)
		if !vr.Valid {
			l.logger.Warn("validation_failed", map[string]interface{}{
				"category": category,
				"errors":   len(vr.Errors),
			})
			rec = RecommendationFromPayload(l.validator.AutoFix(payload, category))
		}
		validated[category] = rec
	}

	final := &OutfitResult{SessionID: sessionID, Profile: profile}
	for category, rec := range validated {
		final.set(category, rec)
	}

	response, err := l.rt.InvokeGuarded(ctx, "leader_aggregate", aggregatePrompt(profile, validated), systemPrompt)
	if err != nil {
		l.logger.Warn("aggregate_unavailable", map[string]interface{}{"error": err.Error()})
	} else if data, ok := extractObject(response); ok {
		if v, ok := data["overall_style"].(string); ok {
			final.OverallStyle = v
		}
		if v, ok := data["summary"].(string); ok {
			final.Summary = v
		}
	}

	l.saveForRecall(ctx, profile, validated, sessionID)
	return final
}

// saveForRecall indexes the session's recommendations so later
// sessions can retrieve them as context. Best-effort.
func (l *Leader) saveForRecall(ctx context.Context, profile *UserProfile, results map[string]*OutfitRecommendation, sessionID string) {
	for category, rec := range results {
		content := "Category: " + category +
			", Items: " + strings.Join(rec.Items, ", ") +
			", Colors: " + strings.Join(rec.Colors, ", ") +
			", Styles: " + strings.Join(rec.Styles, ", ") +
			", Reasons: " + strings.Join(rec.Reasons, ", ") +
			" (mood: " + profile.Mood + ", season: " + profile.Season + ", user: " + profile.Name + ")"
		err := l.rt.Store.SaveRecommendation(ctx, storage.Recommendation{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Category:  category,
			Content:   content,
			CreatedAt: time.Now(),
		})
		if err != nil {
			l.logger.Warn("recommendation_save_failed", map[string]interface{}{
				"category": category,
				"error":    err.Error(),
			})
		}
	}
}
