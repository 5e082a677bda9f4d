package model

// DraftBundle is the full artifact set persisted for one
// subject/grade/semester draft. Each artifact is nil until its stage
// has been generated.
type DraftBundle struct {
	Matrix  *MatrixData    `json:"matrix"`
	Spec    *SpecData      `json:"spec"`
	Exam    *ExamData      `json:"exam"`
	Answers *AnswerKeyData `json:"answers"`
}

// DefaultInput returns the exam parameters the form opens with.
func DefaultInput() ExamInput {
	return ExamInput{
		Subject:    "Toán học",
		Grade:      "10",
		Semester:   "Học kì 1",
		Time:       "90",
		Topics:     "Mệnh đề và tập hợp; Bất phương trình bậc nhất hai ẩn",
		Outcomes:   "Nhận biết mệnh đề, xác định được các tập hợp con, biểu diễn miền nghiệm của bất phương trình...",
		SchoolName: "TRƯỜNG THCS & THPT ...",
		MCQCount:   12,
		TFCount:    4,
		ShortCount: 6,
		EssayCount: 3,
	}
}
