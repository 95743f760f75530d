package conversation

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/formloom/gateway/internal/apierr"
	"github.com/formloom/gateway/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	// File-backed with a busy timeout: the concurrency tests need every
	// connection in the pool to see the same database.
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Agent{}, &models.Conversation{}, &models.Message{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func seedAgent(t *testing.T, db *gorm.DB) *models.Agent {
	t.Helper()
	agent := &models.Agent{ID: "ag1", TenantID: "t1", Name: "Support", Status: models.AgentActive}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return agent
}

type denyQuota struct{}

func (denyQuota) CheckConversationQuota(context.Context, string) error {
	return apierr.MonthlyLimit("Monthly conversation limit reached")
}

func TestValidSessionID(t *testing.T) {
	valid := []string{"session_abc", "a-b.c_d", "ABC123"}
	for _, s := range valid {
		if !ValidSessionID(s) {
			t.Errorf("ValidSessionID(%q) = false, want true", s)
		}
	}
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	invalid := []string{"", "has space", "semi;colon", string(long), "slash/y"}
	for _, s := range invalid {
		if ValidSessionID(s) {
			t.Errorf("ValidSessionID(%q) = true, want false", s)
		}
	}
}

func TestResolve_CreatesOnce(t *testing.T) {
	db := testStoreDB(t)
	agent := seedAgent(t, db)
	store := NewStore(db, nil)

	conv, err := store.Resolve(context.Background(), agent, "session_abc", "v1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conv.SessionID != "session_abc" || conv.AgentID != "ag1" || conv.Status != models.ConversationActive {
		t.Errorf("conversation = %+v", conv)
	}

	again, err := store.Resolve(context.Background(), agent, "session_abc", "v1")
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if again.ID != conv.ID {
		t.Errorf("second Resolve returned different row: %s vs %s", again.ID, conv.ID)
	}

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	if count != 1 {
		t.Errorf("conversations = %d, want 1", count)
	}

	var got models.Agent
	db.First(&got, "id = ?", "ag1")
	if got.ConversationCount != 1 || got.MonthlyUsage != 1 {
		t.Errorf("agent counters = %d/%d, want 1/1", got.ConversationCount, got.MonthlyUsage)
	}
}

func TestResolve_ConcurrentFirstTouch(t *testing.T) {
	db := testStoreDB(t)
	agent := seedAgent(t, db)
	store := NewStore(db, nil)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Resolve(context.Background(), agent, "session_race", "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("worker %d: %v", i, err)
		}
	}

	var count int64
	db.Model(&models.Conversation{}).Where("session_id = ?", "session_race").Count(&count)
	if count != 1 {
		t.Errorf("conversations = %d, want exactly 1", count)
	}

	var got models.Agent
	db.First(&got, "id = ?", "ag1")
	if got.ConversationCount != 1 {
		t.Errorf("ConversationCount = %d, want exactly 1", got.ConversationCount)
	}
}

func TestResolve_SessionBoundToOneAgent(t *testing.T) {
	db := testStoreDB(t)
	agent := seedAgent(t, db)
	store := NewStore(db, nil)

	conv, err := store.Resolve(context.Background(), agent, "shared_session", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	other := &models.Agent{ID: "ag2", TenantID: "t2", Name: "Other", Status: models.AgentActive}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("seed other agent: %v", err)
	}

	// A different agent supplying the same session id must not be handed
	// the existing conversation.
	_, err = store.Resolve(context.Background(), other, "shared_session", "")
	apiErr := apierr.From(err)
	if apiErr.Code != apierr.CodeForbidden || apiErr.Status != 403 {
		t.Errorf("cross-agent Resolve = %+v, want FORBIDDEN 403", apiErr)
	}

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	if count != 1 {
		t.Errorf("conversations = %d, want 1", count)
	}

	// The owner still resolves its own row.
	again, err := store.Resolve(context.Background(), agent, "shared_session", "")
	if err != nil {
		t.Fatalf("owner Resolve: %v", err)
	}
	if again.ID != conv.ID || again.AgentID != "ag1" {
		t.Errorf("owner conversation = %+v, want %s/ag1", again, conv.ID)
	}
}

func TestResolve_QuotaExceeded(t *testing.T) {
	db := testStoreDB(t)
	agent := seedAgent(t, db)
	store := NewStore(db, denyQuota{})

	_, err := store.Resolve(context.Background(), agent, "session_new", "")
	apiErr := apierr.From(err)
	if apiErr.Code != apierr.CodeMonthlyLimit || apiErr.Status != 429 {
		t.Errorf("error = %+v, want monthly limit 429", apiErr)
	}

	// Quota applies only to creation, not to resuming an existing session.
	open := NewStore(db, nil)
	if _, err := open.Resolve(context.Background(), agent, "session_old", ""); err != nil {
		t.Fatalf("seed existing: %v", err)
	}
	if _, err := store.Resolve(context.Background(), agent, "session_old", ""); err != nil {
		t.Errorf("resuming existing session hit quota: %v", err)
	}
}

func TestAppendUserMessage_PersistsBeforeModel(t *testing.T) {
	db := testStoreDB(t)
	agent := seedAgent(t, db)
	store := NewStore(db, nil)

	conv, _ := store.Resolve(context.Background(), agent, "s1", "")
	msg, err := store.AppendUserMessage(context.Background(), conv, []models.Part{{Type: models.PartText, Text: "Hello"}})
	if err != nil {
		t.Fatalf("AppendUserMessage: %v", err)
	}
	if msg.Role != models.RoleUser {
		t.Errorf("Role = %q, want user", msg.Role)
	}
	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want Hello", msg.Content)
	}

	var stored models.Message
	if err := db.First(&stored, "id = ?", msg.ID).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}

	var conv2 models.Conversation
	db.First(&conv2, "id = ?", conv.ID)
	if conv2.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", conv2.MessageCount)
	}
}

func TestLoadHistory_PartsRoundTrip(t *testing.T) {
	db := testStoreDB(t)
	agent := seedAgent(t, db)
	store := NewStore(db, nil)

	conv, _ := store.Resolve(context.Background(), agent, "s1", "")
	if _, err := store.AppendUserMessage(context.Background(), conv, []models.Part{{Type: models.PartText, Text: "hi"}}); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := store.LoadHistory(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history))
	}
	if history[0].Role != models.RoleUser || history[0].Content != "hi" {
		t.Errorf("history[0] = %+v", history[0])
	}
}

func TestLoadHistory_AssistantToolCallsExpand(t *testing.T) {
	db := testStoreDB(t)
	agent := seedAgent(t, db)
	store := NewStore(db, nil)

	conv, _ := store.Resolve(context.Background(), agent, "s1", "")
	_, err := store.AddAssistantMessage(context.Background(), conv.ID, AssistantTurn{
		Content: "Found it.",
		Parts: []models.Part{
			{Type: models.PartToolCall, ToolCallID: "call_1", ToolName: "search_knowledge", State: models.ToolStateResult, Args: []byte(`{"query":"x"}`), Output: "doc text"},
			{Type: models.PartText, Text: "Found it."},
		},
		Provider: "openai", Model: "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("AddAssistantMessage: %v", err)
	}

	history, err := store.LoadHistory(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	// Assistant row expands to assistant message + one tool-result message.
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Role != models.RoleAssistant || len(history[0].ToolCalls) != 1 {
		t.Errorf("assistant = %+v", history[0])
	}
	if history[1].Role != "tool" || history[1].ToolCallID != "call_1" || history[1].Content != "doc text" {
		t.Errorf("tool result = %+v", history[1])
	}
}

func TestLoadHistory_SkipsSystemAndDeleted(t *testing.T) {
	db := testStoreDB(t)
	agent := seedAgent(t, db)
	store := NewStore(db, nil)

	conv, _ := store.Resolve(context.Background(), agent, "s1", "")
	rows := []models.Message{
		{ID: "m1", ConversationID: conv.ID, Role: models.RoleSystem, Content: "prompt"},
		{ID: "m2", ConversationID: conv.ID, Role: models.RoleUser, Content: "visible"},
		{ID: "m3", ConversationID: conv.ID, Role: models.RoleUser, Content: "gone", Deleted: true},
	}
	for _, m := range rows {
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	history, err := store.LoadHistory(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(history) != 1 || history[0].Content != "visible" {
		t.Errorf("history = %+v", history)
	}
}

func TestGet_TenantScoping(t *testing.T) {
	db := testStoreDB(t)
	agent := seedAgent(t, db)
	store := NewStore(db, nil)

	conv, _ := store.Resolve(context.Background(), agent, "s1", "")

	if _, err := store.Get(context.Background(), "t1", conv.ID); err != nil {
		t.Errorf("owner Get: %v", err)
	}

	_, err := store.Get(context.Background(), "other-tenant", conv.ID)
	if apierr.From(err).Code != apierr.CodeNotFound {
		t.Errorf("cross-tenant Get = %v, want NOT_FOUND", err)
	}
}

func TestList_FiltersByTenantAndAgent(t *testing.T) {
	db := testStoreDB(t)
	agent := seedAgent(t, db)
	other := &models.Agent{ID: "ag2", TenantID: "t2", Name: "Other", Status: models.AgentActive}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("seed other agent: %v", err)
	}
	store := NewStore(db, nil)

	store.Resolve(context.Background(), agent, "s1", "")
	store.Resolve(context.Background(), agent, "s2", "")
	store.Resolve(context.Background(), other, "s3", "")

	convs, err := store.List(context.Background(), "t1", "", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(convs) != 2 {
		t.Errorf("t1 conversations = %d, want 2", len(convs))
	}

	convs, err = store.List(context.Background(), "t2", "ag2", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(convs) != 1 || convs[0].SessionID != "s3" {
		t.Errorf("t2 conversations = %+v", convs)
	}
}
