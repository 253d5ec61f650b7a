package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/scio-practice/session-service/internal/models"
)

// ResultsInput is everything one session export needs.
type ResultsInput struct {
	EventName   string
	Questions   []models.Question
	Answers     models.AnswerRecord
	Grades      models.GradingResults
	Score       float64
	TotalPoints float64
}

// ResultsWorkbook renders a finished session as an Excel workbook: one row
// per question with the student's answer, the accepted answer, and the
// awarded score, plus a summary row at the bottom.
func ResultsWorkbook(in ResultsInput) ([]byte, error) {
	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"#", "Question", "Your Answer", "Correct Answer", "Score"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, q := range in.Questions {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), q.Text)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), strings.Join(in.Answers[i], "; "))
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), correctAnswerText(q))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), in.Grades[i])
	}

	summaryRow := len(in.Questions) + 3
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", summaryRow), "Total")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", summaryRow), in.EventName)
	f.SetCellValue(sheetName, fmt.Sprintf("E%d", summaryRow),
		fmt.Sprintf("%.2f / %.2f", in.Score, in.TotalPoints))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func correctAnswerText(q models.Question) string {
	if q.IsMultipleChoice() {
		return strings.Join(q.CorrectOptionTexts(), "; ")
	}
	return strings.Join(q.AcceptedResponses(), "; ")
}
