package vote

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dontaskus/backend/internal/db"
	"github.com/dontaskus/backend/internal/models"
	"github.com/dontaskus/backend/internal/question"
	"github.com/dontaskus/backend/internal/streak"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fixture struct {
	conn     *gorm.DB
	recorder *Recorder
	group    *models.Group
	users    []*models.User
	selector *question.Selector
}

func newFixture(t *testing.T, memberNames ...string) *fixture {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "vote_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	group := models.Group{GroupID: uuid.NewString(), Name: "Test Group", InviteCode: uuid.NewString()[:8]}
	if errCreate := conn.Create(&group).Error; errCreate != nil {
		t.Fatalf("create group: %v", errCreate)
	}
	f := &fixture{
		conn:     conn,
		recorder: NewRecorder(conn, streak.NewTracker(conn)),
		group:    &group,
		selector: question.NewSelector(conn),
	}
	for _, name := range memberNames {
		user := models.User{UserID: uuid.NewString(), GroupID: group.ID, DisplayName: name, ColorAvatar: "#224466"}
		if errCreate := conn.Create(&user).Error; errCreate != nil {
			t.Fatalf("create user: %v", errCreate)
		}
		f.users = append(f.users, &user)
	}
	return f
}

// makeQuestion assigns a one-template set and generates the day's question.
func (f *fixture) makeQuestion(t *testing.T, template models.QuestionTemplate) *models.DailyQuestion {
	t.Helper()
	template.TemplateID = uuid.NewString()
	if err := f.conn.Create(&template).Error; err != nil {
		t.Fatalf("create template: %v", err)
	}
	set := models.QuestionSet{SetID: uuid.NewString(), Name: "Set " + uuid.NewString()[:8]}
	if err := f.conn.Create(&set).Error; err != nil {
		t.Fatalf("create set: %v", err)
	}
	link := models.QuestionSetTemplate{QuestionSetID: set.ID, TemplateID: template.ID}
	if err := f.conn.Create(&link).Error; err != nil {
		t.Fatalf("link template: %v", err)
	}
	assignment := models.GroupQuestionSet{GroupID: f.group.ID, QuestionSetID: set.ID, IsActive: true}
	if err := f.conn.Create(&assignment).Error; err != nil {
		t.Fatalf("assign set: %v", err)
	}
	daily, errGen := f.selector.Generate(f.group.ID, "2026-08-23")
	if errGen != nil {
		t.Fatalf("generate question: %v", errGen)
	}
	return daily
}

func TestRecord_BinaryVote(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	daily := f.makeQuestion(t, models.QuestionTemplate{
		QuestionText: "Yes or no?", QuestionType: models.QuestionTypeBinaryVote,
		OptionA: "Yes", OptionB: "No",
	})

	row, err := f.recorder.Record(f.users[0], daily.QuestionID, Answer{Selections: []string{"Yes"}})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if row.Answer != `["Yes"]` {
		t.Fatalf("unexpected stored answer %q", row.Answer)
	}
	if f.users[0].AnswerStreak != 1 {
		t.Fatalf("expected streak advanced, got %d", f.users[0].AnswerStreak)
	}
}

func TestRecord_RejectsInvalidAndDuplicate(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	daily := f.makeQuestion(t, models.QuestionTemplate{
		QuestionText: "Yes or no?", QuestionType: models.QuestionTypeBinaryVote,
		OptionA: "Yes", OptionB: "No",
	})

	if _, err := f.recorder.Record(f.users[0], daily.QuestionID, Answer{Selections: []string{"Maybe"}}); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("expected ErrInvalidAnswer, got %v", err)
	}
	if _, err := f.recorder.Record(f.users[0], daily.QuestionID, Answer{Selections: []string{"Yes", "No"}}); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("expected ErrInvalidAnswer for multi-select, got %v", err)
	}
	if _, err := f.recorder.Record(f.users[0], daily.QuestionID, Answer{Selections: []string{"Yes"}}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := f.recorder.Record(f.users[0], daily.QuestionID, Answer{Selections: []string{"No"}}); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
}

func TestRecord_MemberChoiceValidatesAgainstSnapshot(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	daily := f.makeQuestion(t, models.QuestionTemplate{
		QuestionText: "Pick someone", QuestionType: models.QuestionTypeMemberChoice,
	})

	if _, err := f.recorder.Record(f.users[0], daily.QuestionID, Answer{Selections: []string{"not-a-member"}}); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("expected ErrInvalidAnswer, got %v", err)
	}
	if _, err := f.recorder.Record(f.users[0], daily.QuestionID, Answer{Selections: []string{f.users[1].UserID}}); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestRecord_MultiSelectWhenAllowed(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	daily := f.makeQuestion(t, models.QuestionTemplate{
		QuestionText: "Pick some", QuestionType: models.QuestionTypeMemberChoice, AllowMultiple: true,
	})

	selections := []string{f.users[1].UserID, f.users[2].UserID}
	if _, err := f.recorder.Record(f.users[0], daily.QuestionID, Answer{Selections: selections}); err != nil {
		t.Fatalf("record: %v", err)
	}

	dup := []string{f.users[1].UserID, f.users[1].UserID}
	if _, err := f.recorder.Record(f.users[1], daily.QuestionID, Answer{Selections: dup}); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("expected ErrInvalidAnswer for duplicate selection, got %v", err)
	}
}

func TestRecord_FreeText(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	daily := f.makeQuestion(t, models.QuestionTemplate{
		QuestionText: "Spill it", QuestionType: models.QuestionTypeFreeText,
	})

	if _, err := f.recorder.Record(f.users[0], daily.QuestionID, Answer{Text: "   "}); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("expected ErrInvalidAnswer for blank text, got %v", err)
	}
	row, err := f.recorder.Record(f.users[0], daily.QuestionID, Answer{Text: "  a secret  "})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if row.TextAnswer != "a secret" {
		t.Fatalf("expected trimmed text, got %q", row.TextAnswer)
	}
}

func TestRecord_ClosedAndForeignQuestions(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	daily := f.makeQuestion(t, models.QuestionTemplate{
		QuestionText: "Yes or no?", QuestionType: models.QuestionTypeBinaryVote,
		OptionA: "Yes", OptionB: "No",
	})

	if _, err := f.recorder.Record(f.users[0], "no-such-question", Answer{Selections: []string{"Yes"}}); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}

	if errClose := f.conn.Model(&models.DailyQuestion{}).Where("id = ?", daily.ID).Update("is_active", false).Error; errClose != nil {
		t.Fatalf("close question: %v", errClose)
	}
	if _, err := f.recorder.Record(f.users[0], daily.QuestionID, Answer{Selections: []string{"Yes"}}); !errors.Is(err, ErrQuestionClosed) {
		t.Fatalf("expected ErrQuestionClosed, got %v", err)
	}
}

func TestResults_CountsAndProgress(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	daily := f.makeQuestion(t, models.QuestionTemplate{
		QuestionText: "Yes or no?", QuestionType: models.QuestionTypeBinaryVote,
		OptionA: "Yes", OptionB: "No",
	})

	if _, err := f.recorder.Record(f.users[0], daily.QuestionID, Answer{Selections: []string{"Yes"}}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := f.recorder.Record(f.users[1], daily.QuestionID, Answer{Selections: []string{"Yes"}}); err != nil {
		t.Fatalf("record: %v", err)
	}

	results, errResults := f.recorder.Results(daily)
	if errResults != nil {
		t.Fatalf("results: %v", errResults)
	}
	if results.Counts["Yes"] != 2 || results.Counts["No"] != 0 {
		t.Fatalf("unexpected counts %+v", results.Counts)
	}
	if results.AnsweredCount != 2 || results.MemberCount != 3 {
		t.Fatalf("unexpected progress %d/%d", results.AnsweredCount, results.MemberCount)
	}
	if len(results.Answers) != 2 || results.Answers[0].DisplayName == "" {
		t.Fatalf("expected voter answers with names, got %+v", results.Answers)
	}
}
