package model

// ImportRowError describes why one spreadsheet row was rejected.
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ImportResult summarises a question spreadsheet import.
type ImportResult struct {
	TotalRows    int              `json:"total_rows"`
	Imported     int              `json:"imported"`
	Skipped      int              `json:"skipped"`
	ErrorCount   int              `json:"error_count"`
	Errors       []ImportRowError `json:"errors"`
	SheetName    string           `json:"sheet_name"`
	BySubject    map[Subject]int  `json:"by_subject"`
	Replaced     bool             `json:"replaced"`
	TotalMarks   int              `json:"total_marks"`
	Questions    []Question       `json:"-"`
}
