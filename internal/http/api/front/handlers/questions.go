package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dontaskus/backend/internal/models"
	"github.com/dontaskus/backend/internal/question"
	"github.com/dontaskus/backend/internal/vote"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	historyDefaultLimit = 30
	historyMaxLimit     = 100
)

// QuestionHandler serves the daily question and records answers.
type QuestionHandler struct {
	db       *gorm.DB
	selector *question.Selector
	votes    *vote.Recorder
}

// NewQuestionHandler constructs a QuestionHandler.
func NewQuestionHandler(db *gorm.DB, selector *question.Selector, votes *vote.Recorder) *QuestionHandler {
	return &QuestionHandler{db: db, selector: selector, votes: votes}
}

// Today returns the group's question for the current day, generating it
// on first access. Results are included once the caller has voted.
func (h *QuestionHandler) Today(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	daily, errGen := h.selector.Generate(user.GroupID, "")
	if errGen != nil {
		switch {
		case errors.Is(errGen, question.ErrInsufficientMembers):
			c.JSON(http.StatusConflict, gin.H{"error": "not enough members for today's question"})
		case errors.Is(errGen, question.ErrNoEligibleTemplates):
			c.JSON(http.StatusNotFound, gin.H{"error": "no questions available"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load question failed"})
		}
		return
	}

	voted, errVoted := h.votes.HasVoted(daily.ID, user.ID)
	if errVoted != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load question failed"})
		return
	}

	view := questionView(daily)
	view["has_voted"] = voted
	if voted {
		results, errResults := h.votes.Results(daily)
		if errResults != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load results failed"})
			return
		}
		view["results"] = results
	}
	c.JSON(http.StatusOK, view)
}

// answerRequest defines the request body for answering.
type answerRequest struct {
	Selections []string `json:"selections"`
	Text       string   `json:"text"`
}

// Answer records the caller's vote on a question.
func (h *QuestionHandler) Answer(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	var body answerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	questionID := strings.TrimSpace(c.Param("question_id"))
	row, errRecord := h.votes.Record(user, questionID, vote.Answer{
		Selections: body.Selections,
		Text:       body.Text,
	})
	if errRecord != nil {
		switch {
		case errors.Is(errRecord, vote.ErrQuestionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "question not found"})
		case errors.Is(errRecord, vote.ErrQuestionClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "question closed"})
		case errors.Is(errRecord, vote.ErrAlreadyAnswered):
			c.JSON(http.StatusConflict, gin.H{"error": "already answered"})
		case errors.Is(errRecord, vote.ErrInvalidAnswer):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid answer"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "record answer failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"vote_id":        row.VoteID,
		"answer_streak":  user.AnswerStreak,
		"longest_streak": user.LongestAnswerStreak,
	})
}

// History returns past questions with their results, newest first.
func (h *QuestionHandler) History(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	limit := historyDefaultLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 && parsed <= historyMaxLimit {
			limit = parsed
		}
	}
	today := h.selector.Today()

	var rows []models.DailyQuestion
	errFind := h.db.WithContext(c.Request.Context()).
		Where("group_id = ? AND question_date < ?", user.GroupID, today).
		Order("question_date DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load history failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		view := questionView(&rows[i])
		results, errResults := h.votes.Results(&rows[i])
		if errResults != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load history failed"})
			return
		}
		view["results"] = results
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"questions": out})
}

func questionView(daily *models.DailyQuestion) gin.H {
	view := gin.H{
		"question_id":    daily.QuestionID,
		"question_text":  daily.QuestionText,
		"question_type":  daily.QuestionType,
		"allow_multiple": daily.AllowMultiple,
		"question_date":  daily.QuestionDate,
		"is_active":      daily.IsActive,
	}
	if len(daily.Options) > 0 {
		var options any
		if errDecode := json.Unmarshal(daily.Options, &options); errDecode == nil {
			view["options"] = options
		}
	}
	return view
}
