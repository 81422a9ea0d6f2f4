package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/stemsi/mocktest-backend/internal/model"
)

var (
	ErrEmptySpreadsheet = errors.New("spreadsheet has no data rows")
	ErrMissingColumn    = errors.New("spreadsheet is missing the Question column")
)

// Header aliases, compared after lowercasing and removing spaces and underscores.
var columnAliases = map[string][]string{
	"question":    {"question", "questiontext"},
	"a":           {"optiona", "a"},
	"b":           {"optionb", "b"},
	"c":           {"optionc", "c"},
	"d":           {"optiond", "d"},
	"correct":     {"correctanswer", "answer"},
	"subject":     {"subject"},
	"marks":       {"marks"},
	"difficulty":  {"difficulty"},
	"topic":       {"topic"},
	"explanation": {"explanation"},
	"image":       {"imageurl", "image"},
}

var optionIDs = []string{"a", "b", "c", "d"}

// ImportService reads and writes question spreadsheets.
type ImportService struct {
	exams        *ExamService
	defaultMarks int
	log          zerolog.Logger
}

// NewImportService creates a new ImportService.
func NewImportService(exams *ExamService, defaultMarks int, log zerolog.Logger) *ImportService {
	if defaultMarks <= 0 {
		defaultMarks = model.DefaultMarks
	}
	return &ImportService{
		exams:        exams,
		defaultMarks: defaultMarks,
		log:          log.With().Str("component", "import_service").Logger(),
	}
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "")
	return strings.ReplaceAll(h, "_", "")
}

// normalizeSubject maps free text like "Maths" or "PHYSICS" to a subject.
// Blank and unrecognised values fall back to mathematics.
func normalizeSubject(raw string) model.Subject {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "phys"):
		return model.SubjectPhysics
	case strings.Contains(s, "chem"):
		return model.SubjectChemistry
	default:
		return model.SubjectMathematics
	}
}

// Parse reads the first sheet of an xlsx file into questions. Rows without
// question text are skipped; malformed rows are reported and left out.
func (s *ImportService) Parse(r io.Reader) (*model.ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySpreadsheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptySpreadsheet
	}

	headerMap := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		headerMap[normalizeHeader(h)] = i
	}
	col := make(map[string]int, len(columnAliases))
	for key, aliases := range columnAliases {
		col[key] = -1
		for _, alias := range aliases {
			if idx, ok := headerMap[alias]; ok {
				col[key] = idx
				break
			}
		}
	}
	if col["question"] < 0 {
		return nil, ErrMissingColumn
	}

	res := &model.ImportResult{
		TotalRows: len(rows) - 1,
		SheetName: sheets[0],
		BySubject: make(map[model.Subject]int, len(model.Subjects)),
	}
	orders := make(map[model.Subject]int, len(model.Subjects))

	for i, row := range rows[1:] {
		cell := func(key string) string {
			idx := col[key]
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		text := cell("question")
		if text == "" {
			res.Skipped++
			continue
		}

		q, rowErr := s.buildRow(i+2, text, cell)
		if rowErr != nil {
			res.Errors = append(res.Errors, *rowErr)
			res.ErrorCount++
			continue
		}

		orders[q.Subject]++
		q.OrderNum = orders[q.Subject]
		res.Questions = append(res.Questions, q)
		res.BySubject[q.Subject]++
		res.TotalMarks += q.Marks
	}
	res.Imported = len(res.Questions)
	return res, nil
}

func (s *ImportService) buildRow(rowNum int, text string, cell func(string) string) (model.Question, *model.ImportRowError) {
	q := model.Question{
		QuestionText: text,
		Subject:      normalizeSubject(cell("subject")),
		Marks:        s.defaultMarks,
		Difficulty:   model.DifficultyMedium,
		Topic:        cell("topic"),
		Explanation:  cell("explanation"),
		ImageURL:     cell("image"),
	}

	for _, id := range optionIDs {
		if t := cell(id); t != "" {
			q.Options = append(q.Options, model.Option{ID: id, Text: t})
		}
	}
	if len(q.Options) < 2 {
		return q, &model.ImportRowError{Row: rowNum, Column: "Options", Message: "at least two options are required"}
	}

	correct := cell("correct")
	if len(correct) == 1 && strings.ContainsAny(strings.ToLower(correct), "abcd") {
		q.CorrectAnswer = strings.ToLower(correct)
	} else if correct != "" {
		for _, o := range q.Options {
			if strings.EqualFold(strings.TrimSpace(o.Text), correct) {
				q.CorrectAnswer = o.ID
				break
			}
		}
	}
	if !q.HasOption(q.CorrectAnswer) {
		return q, &model.ImportRowError{Row: rowNum, Column: "CorrectAnswer", Message: "does not match any option", Value: correct}
	}

	if raw := cell("marks"); raw != "" {
		if m, err := strconv.ParseFloat(raw, 64); err == nil && m >= 1 {
			q.Marks = int(m)
		}
	}

	switch d := model.Difficulty(strings.ToLower(cell("difficulty"))); d {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
		q.Difficulty = d
	}
	return q, nil
}

// Import parses an xlsx file and stores its questions on the exam, replacing
// the existing set when replace is true.
func (s *ImportService) Import(ctx context.Context, examID uuid.UUID, r io.Reader, replace bool) (*model.ImportResult, error) {
	res, err := s.Parse(r)
	if err != nil {
		return nil, err
	}
	res.Replaced = replace

	if len(res.Questions) > 0 {
		if replace {
			_, err = s.exams.ReplaceQuestionSet(ctx, examID, res.Questions)
		} else {
			_, err = s.exams.AppendQuestions(ctx, examID, res.Questions)
		}
		if err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("total_rows", res.TotalRows).
		Int("imported", res.Imported).
		Int("errors", res.ErrorCount).
		Msg("Question import completed")
	return res, nil
}

var exportHeaders = []interface{}{
	"S.No", "Subject", "Topic", "Question", "Option A", "Option B", "Option C", "Option D",
	"Correct Answer", "Marks", "Difficulty", "Explanation", "Image URL", "Created Date",
}

var exportWidths = []float64{8, 12, 15, 50, 25, 25, 25, 25, 12, 8, 12, 30, 20, 12}

// Export writes the exam's questions to an xlsx workbook with one sheet per
// subject and a SUMMARY sheet.
func (s *ImportService) Export(ctx context.Context, examID uuid.UUID) ([]byte, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return nil, err
	}
	qs, err := s.exams.Questions(ctx, examID)
	if err != nil {
		return nil, err
	}
	return BuildQuestionWorkbook(qs)
}

// BuildQuestionWorkbook renders questions as an xlsx workbook.
func BuildQuestionWorkbook(qs []model.Question) ([]byte, error) {
	bySubject := make(map[model.Subject][]model.Question, len(model.Subjects))
	for _, q := range qs {
		bySubject[q.Subject] = append(bySubject[q.Subject], q)
	}

	f := excelize.NewFile()
	defer f.Close()

	first := ""
	for _, subject := range model.Subjects {
		list := bySubject[subject]
		if len(list) == 0 {
			continue
		}
		sheet := strings.ToUpper(string(subject))
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if first == "" {
			first = sheet
		}
		if err := f.SetSheetRow(sheet, "A1", &exportHeaders); err != nil {
			return nil, err
		}
		for i, q := range list {
			row := []interface{}{
				i + 1, strings.ToUpper(string(q.Subject)), orDefault(q.Topic, "General"), q.QuestionText,
				optionText(q, "a"), optionText(q, "b"), optionText(q, "c"), optionText(q, "d"),
				strings.ToUpper(q.CorrectAnswer), q.EffectiveMarks(),
				strings.ToUpper(string(orDefault(string(q.Difficulty), string(model.DifficultyMedium)))),
				q.Explanation, q.ImageURL, q.CreatedAt.Format("2006-01-02"),
			}
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return nil, err
			}
		}
		for i, w := range exportWidths {
			name, _ := excelize.ColumnNumberToName(i + 1)
			_ = f.SetColWidth(sheet, name, name, w)
		}
	}

	if err := writeSummarySheet(f, bySubject); err != nil {
		return nil, err
	}
	if first == "" {
		first = "SUMMARY"
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	if idx, err := f.GetSheetIndex(first); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummarySheet(f *excelize.File, bySubject map[model.Subject][]model.Question) error {
	const sheet = "SUMMARY"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	header := []interface{}{"Subject", "Total Questions", "Easy Questions", "Medium Questions", "Hard Questions", "With Images", "Total Marks"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	row := 2
	for _, subject := range model.Subjects {
		list := bySubject[subject]
		if len(list) == 0 {
			continue
		}
		counts := map[model.Difficulty]int{}
		images, marks := 0, 0
		for _, q := range list {
			counts[q.Difficulty]++
			if q.ImageURL != "" {
				images++
			}
			marks += q.EffectiveMarks()
		}
		values := []interface{}{
			strings.ToUpper(string(subject)), len(list),
			counts[model.DifficultyEasy], counts[model.DifficultyMedium], counts[model.DifficultyHard],
			images, marks,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		row++
	}
	return f.SetColWidth(sheet, "A", "G", 15)
}

func optionText(q model.Question, id string) string {
	for _, o := range q.Options {
		if strings.EqualFold(o.ID, id) {
			return o.Text
		}
	}
	return ""
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

var templateHeaders = []interface{}{
	"Question", "Option A", "Option B", "Option C", "Option D", "Correct Answer",
	"Subject", "Marks", "Difficulty", "Topic", "Explanation", "Image URL",
}

// BuildImportTemplate renders an empty import workbook with one sample row.
func BuildImportTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Questions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	sample := []interface{}{
		"What is 2 + 2?", "3", "4", "5", "6", "B",
		"mathematics", 4, "easy", "Arithmetic", "2 + 2 = 4", "",
	}
	if err := f.SetSheetRow(sheet, "A1", &templateHeaders); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A2", &sample); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(sheet, "A", "A", 50)
	_ = f.SetColWidth(sheet, "B", "E", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
