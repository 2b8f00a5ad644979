// Package scoring turns a terminal attempt and the paper's item definitions into
// a score summary and a per-question breakdown. Everything here is pure.
package scoring

import (
	"errors"
	"math"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
)

var ErrAttemptNotTerminal = errors.New("scoring requires a submitted attempt")

type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	if policy == "" {
		policy = PolicyNormalized
	}
	return &Engine{policy: policy}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// Score grades every item of the paper, in paper order, against the attempt's answers.
// A referenced item missing from items still counts towards the total and is
// flagged for review, so a broken paper never blocks submission.
func (e *Engine) Score(attempt *models.AssessmentAttempt, paper *models.AssessmentPaper, items map[string]*models.AssessmentItem, scoredAt time.Time) (*models.AttemptResult, error) {
	if attempt.Status != models.AttemptSubmitted {
		return nil, ErrAttemptNotTerminal
	}

	answers := attempt.AnswerMap()
	refs := paper.OrderedItems()

	result := &models.AttemptResult{
		AttemptID:      attempt.ID,
		TotalQuestions: len(refs),
		Questions:      make([]models.QuestionResult, 0, len(refs)),
		ScoredAt:       scoredAt,
	}

	for _, ref := range refs {
		var answer *models.AttemptAnswer
		if a, found := answers[ref.ItemID]; found {
			answer = &a
		}

		var qr models.QuestionResult
		item := items[ref.ItemID]
		if item == nil {
			qr = missingItem(ref.ItemID, answer)
		} else {
			qr = e.gradeItem(item, answer)
		}
		qr.Order = ref.Order
		qr.Marks = ref.EffectiveMarks(item)
		if qr.IsCorrect {
			qr.MarksAwarded = qr.Marks
		}

		result.TotalMarks += qr.Marks
		result.MarksAwarded += qr.MarksAwarded
		if qr.Answered {
			result.Answered++
		}
		if qr.IsCorrect {
			result.Correct++
		}
		if qr.NeedsReview {
			result.NeedsReview++
		}
		result.Questions = append(result.Questions, qr)
	}

	result.Percentage = Percentage(result.Correct, result.TotalQuestions)
	return result, nil
}

func (e *Engine) gradeItem(item *models.AssessmentItem, answer *models.AttemptAnswer) models.QuestionResult {
	qr := models.QuestionResult{
		QuestionID:    item.ID,
		Type:          item.Type,
		CorrectIndex:  item.CorrectIndex,
		CorrectAnswer: item.CorrectAnswer,
		Explanation:   item.Explanation,
		Answered:      answer.IsAnswered(),
	}
	if answer != nil {
		qr.SelectedIndex = answer.SelectedIndex
		qr.TextAnswer = answer.TextAnswer
	}
	if !qr.Answered {
		return qr
	}

	switch item.Type {
	case models.ItemMCQ:
		qr.IsCorrect = answer.SelectedIndex != nil && item.CorrectIndex != nil &&
			*answer.SelectedIndex == *item.CorrectIndex
	default:
		if answer.TextAnswer == nil || item.CorrectAnswer == nil || *item.CorrectAnswer == "" {
			qr.NeedsReview = true
			return qr
		}
		correct, decided := matchText(e.policy, *answer.TextAnswer, *item.CorrectAnswer)
		qr.IsCorrect = correct
		qr.NeedsReview = !decided
	}
	return qr
}

func missingItem(itemID string, answer *models.AttemptAnswer) models.QuestionResult {
	qr := models.QuestionResult{
		QuestionID:  itemID,
		Answered:    answer.IsAnswered(),
		NeedsReview: true,
		ItemMissing: true,
	}
	if answer != nil {
		qr.SelectedIndex = answer.SelectedIndex
		qr.TextAnswer = answer.TextAnswer
	}
	return qr
}

// Percentage is round(100*correct/total); a paper with no questions scores 0.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}
