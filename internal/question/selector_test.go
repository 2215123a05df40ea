package question

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dontaskus/backend/internal/db"
	"github.com/dontaskus/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "question_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

func seedGroup(t *testing.T, conn *gorm.DB, memberNames ...string) *models.Group {
	t.Helper()
	group := models.Group{GroupID: uuid.NewString(), Name: "Test Group", InviteCode: uuid.NewString()[:8]}
	if err := conn.Create(&group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	for _, name := range memberNames {
		user := models.User{UserID: uuid.NewString(), GroupID: group.ID, DisplayName: name, ColorAvatar: "#336699"}
		if err := conn.Create(&user).Error; err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
	}
	return &group
}

// assignSet creates a question set with the given templates and assigns
// it to the group as the active set.
func assignSet(t *testing.T, conn *gorm.DB, group *models.Group, templates ...models.QuestionTemplate) []models.QuestionTemplate {
	t.Helper()
	set := models.QuestionSet{SetID: uuid.NewString(), Name: "Set " + uuid.NewString()[:8]}
	if err := conn.Create(&set).Error; err != nil {
		t.Fatalf("create set: %v", err)
	}
	created := make([]models.QuestionTemplate, 0, len(templates))
	for i := range templates {
		templates[i].TemplateID = uuid.NewString()
		if err := conn.Create(&templates[i]).Error; err != nil {
			t.Fatalf("create template: %v", err)
		}
		link := models.QuestionSetTemplate{QuestionSetID: set.ID, TemplateID: templates[i].ID, Position: i}
		if err := conn.Create(&link).Error; err != nil {
			t.Fatalf("link template: %v", err)
		}
		created = append(created, templates[i])
	}
	assignment := models.GroupQuestionSet{GroupID: group.ID, QuestionSetID: set.ID, IsActive: true}
	if err := conn.Create(&assignment).Error; err != nil {
		t.Fatalf("assign set: %v", err)
	}
	return created
}

func TestGenerate_Idempotent(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn)
	group := seedGroup(t, conn, "alice", "bob")
	assignSet(t, conn, group,
		models.QuestionTemplate{QuestionText: "Q1", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
		models.QuestionTemplate{QuestionText: "Q2", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
	)

	first, err := selector.Generate(group.ID, "2026-08-23")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, errSecond := selector.Generate(group.ID, "2026-08-23")
	if errSecond != nil {
		t.Fatalf("generate again: %v", errSecond)
	}
	if first.QuestionID != second.QuestionID {
		t.Fatalf("expected same question on re-entry, got %s and %s", first.QuestionID, second.QuestionID)
	}

	var count int64
	if errCount := conn.Model(&models.DailyQuestion{}).Where("group_id = ?", group.ID).Count(&count).Error; errCount != nil {
		t.Fatalf("count questions: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected exactly one daily question, got %d", count)
	}
}

func TestGenerate_NoRepeatUntilExhausted(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn)
	group := seedGroup(t, conn, "alice", "bob")
	assignSet(t, conn, group,
		models.QuestionTemplate{QuestionText: "Q1", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
		models.QuestionTemplate{QuestionText: "Q2", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
		models.QuestionTemplate{QuestionText: "Q3", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
	)

	seen := make(map[string]bool)
	dates := []string{"2026-08-23", "2026-08-24", "2026-08-25"}
	for _, date := range dates {
		q, err := selector.Generate(group.ID, date)
		if err != nil {
			t.Fatalf("generate %s: %v", date, err)
		}
		if seen[q.QuestionText] {
			t.Fatalf("question %q repeated before pool exhaustion", q.QuestionText)
		}
		seen[q.QuestionText] = true
	}

	// Pool exhausted: the next draw resets the cycle and succeeds.
	q, err := selector.Generate(group.ID, "2026-08-26")
	if err != nil {
		t.Fatalf("generate after exhaustion: %v", err)
	}
	if !seen[q.QuestionText] {
		t.Fatalf("expected a recycled question, got %q", q.QuestionText)
	}

	var usedCount int64
	if errCount := conn.Model(&models.UsedQuestion{}).Where("group_id = ?", group.ID).Count(&usedCount).Error; errCount != nil {
		t.Fatalf("count used: %v", errCount)
	}
	if usedCount != 1 {
		t.Fatalf("expected history reset to 1 entry, got %d", usedCount)
	}
}

func TestGenerate_SmallGroupSkipsMemberQuestions(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn)
	group := seedGroup(t, conn, "alice")
	assignSet(t, conn, group,
		models.QuestionTemplate{QuestionText: "Pick someone", QuestionType: models.QuestionTypeMemberChoice},
		models.QuestionTemplate{QuestionText: "Plain", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
	)

	q, err := selector.Generate(group.ID, "2026-08-23")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if q.QuestionType != models.QuestionTypeBinaryVote {
		t.Fatalf("expected member question to be skipped, got %s", q.QuestionType)
	}
}

func TestGenerate_InsufficientMembersDoesNotReset(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn)
	group := seedGroup(t, conn, "alice")
	assignSet(t, conn, group,
		models.QuestionTemplate{QuestionText: "Pick someone", QuestionType: models.QuestionTypeMemberChoice},
		models.QuestionTemplate{QuestionText: "Pick a duo", QuestionType: models.QuestionTypeDuoChoice},
		models.QuestionTemplate{QuestionText: "Plain", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
	)

	if _, err := selector.Generate(group.ID, "2026-08-23"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Only member-targeting templates remain; one member blocks them.
	_, err := selector.Generate(group.ID, "2026-08-24")
	if !errors.Is(err, ErrInsufficientMembers) {
		t.Fatalf("expected ErrInsufficientMembers, got %v", err)
	}

	var usedCount int64
	if errCount := conn.Model(&models.UsedQuestion{}).Where("group_id = ?", group.ID).Count(&usedCount).Error; errCount != nil {
		t.Fatalf("count used: %v", errCount)
	}
	if usedCount != 1 {
		t.Fatalf("expected history untouched, got %d entries", usedCount)
	}
}

func TestGenerate_NoTemplates(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn)
	group := seedGroup(t, conn, "alice", "bob")

	if err := conn.Where("1 = 1").Delete(&models.QuestionTemplate{}).Error; err != nil {
		t.Fatalf("clear templates: %v", err)
	}

	if _, err := selector.Generate(group.ID, "2026-08-23"); !errors.Is(err, ErrNoEligibleTemplates) {
		t.Fatalf("expected ErrNoEligibleTemplates, got %v", err)
	}
}

func TestGenerate_PublicFallbackWithoutAssignedSet(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn)
	group := seedGroup(t, conn, "alice", "bob")

	// No set assigned; the seeded public pool backs the draw.
	q, err := selector.Generate(group.ID, "2026-08-23")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if q.QuestionText == "" {
		t.Fatalf("expected a question from the public pool")
	}
}

func TestGenerate_MemberOptionsExcludeSuspended(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn)
	group := seedGroup(t, conn, "alice", "bob", "carol")
	assignSet(t, conn, group,
		models.QuestionTemplate{QuestionText: "Pick someone", QuestionType: models.QuestionTypeMemberChoice},
	)

	errSuspend := conn.Model(&models.User{}).
		Where("group_id = ? AND display_name = ?", group.ID, "carol").
		Update("suspended", true).Error
	if errSuspend != nil {
		t.Fatalf("suspend member: %v", errSuspend)
	}

	q, err := selector.Generate(group.ID, "2026-08-23")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var options []MemberOption
	if errUnmarshal := json.Unmarshal(q.Options, &options); errUnmarshal != nil {
		t.Fatalf("unmarshal options: %v", errUnmarshal)
	}
	if len(options) != 2 {
		t.Fatalf("expected 2 member options, got %d", len(options))
	}
	for _, option := range options {
		if option.DisplayName == "carol" {
			t.Fatalf("suspended member must not appear in options")
		}
	}
}

func TestGenerate_DuoOptionsUniqueAndCapped(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn)
	group := seedGroup(t, conn, "a", "b", "c", "d", "e")
	assignSet(t, conn, group,
		models.QuestionTemplate{QuestionText: "Pick a duo", QuestionType: models.QuestionTypeDuoChoice},
	)

	q, err := selector.Generate(group.ID, "2026-08-23")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var options []DuoOption
	if errUnmarshal := json.Unmarshal(q.Options, &options); errUnmarshal != nil {
		t.Fatalf("unmarshal options: %v", errUnmarshal)
	}
	// 5 members yield 10 possible pairs; the cap keeps 5.
	if len(options) != 5 {
		t.Fatalf("expected 5 duo options, got %d", len(options))
	}
	seen := make(map[string]bool)
	for _, option := range options {
		if len(option.UserIDs) != 2 || option.UserIDs[0] == option.UserIDs[1] {
			t.Fatalf("invalid duo %+v", option)
		}
		key := option.UserIDs[0] + "|" + option.UserIDs[1]
		if option.UserIDs[1] < option.UserIDs[0] {
			key = option.UserIDs[1] + "|" + option.UserIDs[0]
		}
		if seen[key] {
			t.Fatalf("duplicate duo pair %+v", option)
		}
		seen[key] = true
	}
}

func TestRegenerate_ReplacesActiveQuestion(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn)
	group := seedGroup(t, conn, "alice", "bob")
	assignSet(t, conn, group,
		models.QuestionTemplate{QuestionText: "Q1", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
		models.QuestionTemplate{QuestionText: "Q2", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
	)

	first, err := selector.Generate(group.ID, "2026-08-23")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	replacement, errRegen := selector.Regenerate(group.ID, "2026-08-23")
	if errRegen != nil {
		t.Fatalf("regenerate: %v", errRegen)
	}
	if replacement.QuestionID == first.QuestionID {
		t.Fatalf("expected a new question on regenerate")
	}

	var old models.DailyQuestion
	if errFind := conn.Where("question_id = ?", first.QuestionID).First(&old).Error; errFind != nil {
		t.Fatalf("reload old question: %v", errFind)
	}
	if old.IsActive {
		t.Fatalf("expected old question to be deactivated")
	}
}

func TestResetCycle_ClearsHistoryOnly(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn)
	group := seedGroup(t, conn, "alice", "bob")
	assignSet(t, conn, group,
		models.QuestionTemplate{QuestionText: "Q1", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
	)

	if _, err := selector.Generate(group.ID, "2026-08-23"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := selector.ResetCycle(group.ID); err != nil {
		t.Fatalf("reset cycle: %v", err)
	}

	var usedCount, questionCount int64
	if err := conn.Model(&models.UsedQuestion{}).Where("group_id = ?", group.ID).Count(&usedCount).Error; err != nil {
		t.Fatalf("count used: %v", err)
	}
	if err := conn.Model(&models.DailyQuestion{}).Where("group_id = ?", group.ID).Count(&questionCount).Error; err != nil {
		t.Fatalf("count questions: %v", err)
	}
	if usedCount != 0 {
		t.Fatalf("expected history cleared, got %d", usedCount)
	}
	if questionCount != 1 {
		t.Fatalf("expected daily questions preserved, got %d", questionCount)
	}
}

func TestCycleStatus(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn)
	group := seedGroup(t, conn, "alice", "bob")
	assignSet(t, conn, group,
		models.QuestionTemplate{QuestionText: "Q1", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
		models.QuestionTemplate{QuestionText: "Q2", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
	)

	if _, err := selector.Generate(group.ID, "2026-08-23"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	status, errStatus := selector.CycleStatus(group.ID)
	if errStatus != nil {
		t.Fatalf("cycle status: %v", errStatus)
	}
	if status.PoolSize != 2 || status.UsedCount != 1 || status.Remaining != 1 || status.Exhausted {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestGenerate_ConcurrentSingleWinner(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn)
	group := seedGroup(t, conn, "alice", "bob")
	assignSet(t, conn, group,
		models.QuestionTemplate{QuestionText: "Q1", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
		models.QuestionTemplate{QuestionText: "Q2", QuestionType: models.QuestionTypeBinaryVote, OptionA: "Yes", OptionB: "No"},
	)

	const workers = 8
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			q, err := selector.Generate(group.ID, "2026-08-23")
			if err != nil {
				t.Errorf("generate: %v", err)
				return
			}
			results[slot] = q.QuestionID
		}(i)
	}
	wg.Wait()

	for _, id := range results[1:] {
		if id != results[0] {
			t.Fatalf("expected a single question for all callers, got %v", results)
		}
	}
}
