package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Timwood0x10/StyleAgent/llm"
	"github.com/Timwood0x10/StyleAgent/protocol"
	"github.com/Timwood0x10/StyleAgent/registry"
)

// newCollectFixture registers one task per category and returns the
// pieces a fan-in test needs.
func newCollectFixture(t *testing.T) (*Runtime, *Leader, []Task) {
	t.Helper()
	rt := NewTestRuntime(nil)
	leader := NewLeader(rt)
	tasks := leader.CreateTasks(context.Background(), DefaultProfile(), "session-1")
	if len(tasks) != 4 {
		t.Fatalf("tasks = %d, want 4 (default categories)", len(tasks))
	}
	return rt, leader, tasks
}

// replyAs sends a result envelope to the leader as the given worker.
func replyAs(rt *Runtime, agentID string, task Task, payload map[string]any, status string) {
	ws := protocol.NewSender(rt.Fabric, rt.Budgeter, agentID, rt.Logger)
	ws.SendResult(LeaderID, task.ID, task.SessionID, payload, status)
}

func successPayload(category string) map[string]any {
	return map[string]any{
		"category": category,
		"items":    []any{category + " pick"},
		"colors":   []any{"white"},
		"styles":   []any{"casual"},
		"reasons":  []any{"fits the mood"},
	}
}

func TestCollectAllSuccess(t *testing.T) {
	rt, leader, tasks := newCollectFixture(t)
	for _, task := range tasks {
		replyAs(rt, task.AgentID, task, successPayload(task.Category), protocol.StatusSuccess)
	}

	results, missing := leader.Collect(context.Background(), tasks, 2*time.Second)
	if len(results) != 4 || len(missing) != 0 {
		t.Fatalf("results = %d, missing = %v", len(results), missing)
	}
	if results["top"].Items[0] != "top pick" {
		t.Errorf("top result = %+v", results["top"])
	}
	for _, task := range tasks {
		if rec := rt.Registry.Get(task.ID); rec.Status != registry.StatusCompleted {
			t.Errorf("task %s status = %s", task.Category, rec.Status)
		}
	}
}

func TestCollectPartialFailure(t *testing.T) {
	rt, leader, tasks := newCollectFixture(t)

	var failed Task
	for _, task := range tasks {
		if task.Category == CategoryShoes {
			failed = task
			replyAs(rt, task.AgentID, task, map[string]any{"error": "llm exploded"}, protocol.StatusFailed)
			continue
		}
		replyAs(rt, task.AgentID, task, successPayload(task.Category), protocol.StatusSuccess)
	}

	results, missing := leader.Collect(context.Background(), tasks, 2*time.Second)

	// The failed worker is marked received, not missing, so the loop
	// finishes without waiting out the deadline.
	if len(results) != 3 {
		t.Errorf("results = %d, want 3", len(results))
	}
	if len(missing) != 0 {
		t.Errorf("missing = %v, want empty", missing)
	}
	dlq := rt.Fabric.DeadLetters(failed.AgentID)
	if len(dlq) != 1 || dlq[0].Error != "llm exploded" {
		t.Errorf("dead letters = %+v", dlq)
	}
	if rec := rt.Registry.Get(failed.ID); rec.Status != registry.StatusFailed {
		t.Errorf("failed task status = %s", rec.Status)
	}
}

func TestCollectSilentWorker(t *testing.T) {
	rt, leader, tasks := newCollectFixture(t)
	for _, task := range tasks {
		if task.Category == CategoryTop {
			continue // never replies
		}
		replyAs(rt, task.AgentID, task, successPayload(task.Category), protocol.StatusSuccess)
	}

	start := time.Now()
	results, missing := leader.Collect(context.Background(), tasks, 600*time.Millisecond)
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Errorf("collect returned before the deadline: %s", elapsed)
	}

	if len(results) != 3 {
		t.Errorf("results = %d, want 3", len(results))
	}
	if len(missing) != 1 || missing[0] != AgentForCategory(CategoryTop) {
		t.Errorf("missing = %v", missing)
	}
}

func TestCollectIgnoresUnexpectedSender(t *testing.T) {
	rt, leader, tasks := newCollectFixture(t)

	// A stale reply from an identity outside this dispatch round must
	// not fill the shoes slot or count toward completion.
	var shoesTask Task
	for _, task := range tasks {
		if task.Category == CategoryShoes {
			shoesTask = task
			continue
		}
		replyAs(rt, task.AgentID, task, successPayload(task.Category), protocol.StatusSuccess)
	}
	replyAs(rt, "agent_stale", shoesTask, successPayload(CategoryShoes), protocol.StatusSuccess)

	results, missing := leader.Collect(context.Background(), tasks, 600*time.Millisecond)

	if len(results) != 3 {
		t.Errorf("results = %d, want 3", len(results))
	}
	if _, ok := results[CategoryShoes]; ok {
		t.Error("stray sender's payload must not be recorded")
	}
	if len(missing) != 1 || missing[0] != shoesTask.AgentID {
		t.Errorf("missing = %v, want [%s]", missing, shoesTask.AgentID)
	}
	if rec := rt.Registry.Get(shoesTask.ID); rec.Status == registry.StatusCompleted {
		t.Errorf("stray sender must not complete the task, status = %s", rec.Status)
	}
}

func TestCollectDemultiplexesAckAndProgress(t *testing.T) {
	rt, leader, tasks := newCollectFixture(t)
	task := tasks[0]
	tasks = tasks[:1]

	ack := protocol.NewEnvelope(protocol.MethodAck, task.AgentID, LeaderID, task.ID, task.SessionID,
		map[string]any{protocol.KeyAckOf: "msg-1", protocol.KeyStatus: protocol.StatusSuccess})
	rt.Fabric.Send(LeaderID, ack)

	ws := protocol.NewSender(rt.Fabric, rt.Budgeter, task.AgentID, rt.Logger)
	ws.SendProgress(LeaderID, task.ID, task.SessionID, 0.3, "warming up")
	ws.SendProgress(LeaderID, task.ID, task.SessionID, 0.7, "almost there")
	replyAs(rt, task.AgentID, task, successPayload(task.Category), protocol.StatusSuccess)

	results, missing := leader.Collect(context.Background(), tasks, 2*time.Second)
	if len(results) != 1 || len(missing) != 0 {
		t.Fatalf("results = %d, missing = %v", len(results), missing)
	}

	// Progress is last-write-wins per sender; acks never count toward
	// completion.
	report := leader.Progress()[task.AgentID]
	if report.Fraction != 0.7 || report.Message != "almost there" {
		t.Errorf("progress = %+v", report)
	}
}

func TestParseProfileUnavailableYieldsDefault(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetError(fmt.Errorf("service rejected the request")) // unknown kind, not retried
	rt := NewTestRuntime(mock)
	leader := NewLeader(rt)

	p := leader.ParseProfile(context.Background(), "Anna, female, 30 years old")
	if p.Name != "User" || p.Age != 25 {
		t.Errorf("profile = %+v, want neutral default", p)
	}
}

func TestParseProfileGarbageFallsBackToKeywords(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetResponse("I could not produce JSON, sorry")
	rt := NewTestRuntime(mock)
	leader := NewLeader(rt)

	p := leader.ParseProfile(context.Background(), "Anna, female, 30 years old, doctor")
	if p.Name != "Anna" || p.Gender != "female" || p.Age != 30 || p.Occupation != "doctor" {
		t.Errorf("profile = %+v, want keyword extraction", p)
	}
}

func TestAggregateFallsBackToEmptySummary(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetError(fmt.Errorf("service rejected the request"))
	rt := NewTestRuntime(mock)
	leader := NewLeader(rt)

	results := map[string]*OutfitRecommendation{
		"top": {Category: "top", Items: []string{"blazer"}, Colors: []string{"navy"},
			Styles: []string{"smart"}, Reasons: []string{"work"}},
	}
	final := leader.Aggregate(context.Background(), DefaultProfile(), results, "session-2")

	if final.Summary != "" || final.OverallStyle != "" {
		t.Errorf("summary should be empty on synthesis failure: %+v", final)
	}
	if final.Top == nil || final.Top.Items[0] != "blazer" {
		t.Errorf("per-category results lost: %+v", final.Top)
	}

	// The recommendations are still indexed for later recall.
	hits, err := rt.Store.SearchSimilar(context.Background(), "Items: blazer", 5)
	if err != nil || len(hits) == 0 {
		t.Errorf("recall index empty: %v, %v", hits, err)
	}
}

func TestAggregateAutoFixesInvalidResults(t *testing.T) {
	rt := NewTestRuntime(nil)
	leader := NewLeader(rt)

	results := map[string]*OutfitRecommendation{
		"shoes": {Category: "shoes", Items: []string{"loafers"}}, // colors/styles/reasons missing
	}
	final := leader.Aggregate(context.Background(), DefaultProfile(), results, "session-3")

	if final.Shoes == nil {
		t.Fatal("shoes slot empty")
	}
	if len(final.Shoes.Colors) != 1 || final.Shoes.Colors[0] != "Not provided" {
		t.Errorf("colors = %v, want auto-fixed placeholder", final.Shoes.Colors)
	}
}

func TestProcessEndToEnd(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.InvokeFunc = func(ctx context.Context, prompt, system string) (string, error) {
		switch {
		case strings.Contains(prompt, "Extract user profile"):
			return `{"name":"Lisa","gender":"female","age":28,"occupation":"designer","hobbies":["travel"],"mood":"happy","budget":"medium","season":"summer","occasion":"date"}`, nil
		case strings.Contains(prompt, "determine which clothing categories"):
			return `["head","top","bottom","shoes"]`, nil
		case strings.Contains(prompt, "overall style suggestions"):
			return `{"overall_style":"fresh summer","summary":"light and breezy"}`, nil
		default:
			for _, c := range Categories {
				if strings.Contains(prompt, `"category": "`+c+`"`) {
					return fmt.Sprintf(`{"category":%q,"items":["%s pick"],"colors":["white"],"styles":["casual"],"reasons":["fits"],"price_range":"$"}`, c, c), nil
				}
			}
			return "", fmt.Errorf("unexpected prompt")
		}
	}

	rt := NewTestRuntime(mock)
	ctx := context.Background()

	var workers []*Worker
	for _, category := range Categories {
		w := NewWorker(rt, category)
		w.Poll = 20 * time.Millisecond
		w.Start(ctx)
		workers = append(workers, w)
	}
	defer StopWorkers(workers)

	leader := NewLeader(rt)
	final, err := leader.Process(ctx, "Lisa, female, 28 years old, designer, happy, going on a date")
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(final.Missing) != 0 {
		t.Fatalf("missing = %v", final.Missing)
	}
	for _, rec := range []*OutfitRecommendation{final.Head, final.Top, final.Bottom, final.Shoes} {
		if rec == nil {
			t.Fatalf("incomplete result: %+v", final)
		}
	}
	if final.Top.Items[0] != "top pick" {
		t.Errorf("top = %+v", final.Top)
	}
	if final.OverallStyle != "fresh summer" || final.Summary != "light and breezy" {
		t.Errorf("synthesis = %q / %q", final.OverallStyle, final.Summary)
	}
	if final.Profile.Name != "Lisa" {
		t.Errorf("profile = %+v", final.Profile)
	}

	// Every registered task ended completed, claimed by its worker.
	recs := rt.Registry.SessionTasks(final.SessionID)
	if len(recs) != 4 {
		t.Fatalf("session tasks = %d", len(recs))
	}
	for _, rec := range recs {
		if rec.Status != registry.StatusCompleted {
			t.Errorf("task %s status = %s", rec.Category, rec.Status)
		}
		if rec.AgentID != AgentForCategory(rec.Category) {
			t.Errorf("task %s assignee = %s", rec.Category, rec.AgentID)
		}
	}
}
