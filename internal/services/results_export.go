package services

import (
	"fmt"
	"strings"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet   = "Summary"
	questionsSheet = "Questions"
	xlsxMIME       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// exportResults renders a submitted attempt as a two-sheet workbook.
func exportResults(results *ResultsResponse) (*ExportFile, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet instead of leaving an empty "Sheet1" behind.
	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	writeSummary(f, results)

	if _, err := f.NewSheet(questionsSheet); err != nil {
		return nil, fmt.Errorf("failed to create questions sheet: %w", err)
	}
	writeQuestionRows(f, results)
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	return &ExportFile{
		FileName:    fmt.Sprintf("attempt-%s-results.xlsx", results.Attempt.ID),
		ContentType: xlsxMIME,
		Data:        buf.Bytes(),
	}, nil
}

func writeSummary(f *excelize.File, results *ResultsResponse) {
	attempt, score := results.Attempt, results.Score

	submittedAt := ""
	if attempt.SubmittedAt != nil {
		submittedAt = attempt.SubmittedAt.Format("2006-01-02 15:04:05 MST")
	}

	rows := [][]interface{}{
		{"Paper", results.Paper.Title},
		{"Subject", results.Paper.Subject},
		{"Attempt", attempt.ID},
		{"Started", attempt.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Submitted", submittedAt},
		{"Auto submitted", attempt.AutoSubmitted},
		{"Time used (s)", attempt.TimeUsedSeconds},
		{"Questions", score.TotalQuestions},
		{"Answered", score.Answered},
		{"Correct", score.Correct},
		{"Percentage", score.Percentage},
		{"Marks", fmt.Sprintf("%d / %d", score.MarksAwarded, score.TotalMarks)},
		{"Needs review", score.NeedsReview},
	}
	for i, row := range rows {
		for j, value := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			f.SetCellValue(summarySheet, cell, value)
		}
	}
}

func writeQuestionRows(f *excelize.File, results *ResultsResponse) {
	headers := []string{"#", "Question", "Type", "Your Answer", "Correct Answer", "Correct", "Needs Review", "Marks", "Marks Awarded"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(questionsSheet, cell, header)
	}

	for rowIndex, q := range results.PerQuestion {
		row := []interface{}{
			q.Order,
			q.Prompt,
			string(q.Type),
			describeGiven(q),
			describeCanonical(q),
			q.IsCorrect,
			q.NeedsReview,
			q.Marks,
			q.MarksAwarded,
		}
		for colIndex, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIndex+1, rowIndex+2)
			f.SetCellValue(questionsSheet, cell, value)
		}
	}
}

func describeGiven(q QuestionResultView) string {
	if !q.Answered {
		return ""
	}
	if q.Type == models.ItemMCQ && q.SelectedIndex != nil {
		return optionLabel(q.Options, *q.SelectedIndex)
	}
	if q.TextAnswer != nil {
		return strings.TrimSpace(*q.TextAnswer)
	}
	return ""
}

func describeCanonical(q QuestionResultView) string {
	if q.Type == models.ItemMCQ && q.CorrectIndex != nil {
		return optionLabel(q.Options, *q.CorrectIndex)
	}
	if q.CorrectAnswer != nil {
		return *q.CorrectAnswer
	}
	return ""
}

func optionLabel(options []string, idx int) string {
	if idx < 0 || idx >= len(options) {
		return fmt.Sprintf("option %d", idx+1)
	}
	return fmt.Sprintf("%c. %s", 'A'+idx, options[idx])
}
